package metar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// remarkMatcher looks for one kind of group anywhere in the remarks text
type remarkMatcher func(text string) (Remark, bool)

var (
	stationTypePattern = regexp.MustCompile(`\bAO([12])\b`)
	slpPattern         = regexp.MustCompile(`\bSLP(\d{3})\b`)
	preciseTempPattern = regexp.MustCompile(`\bT([01])(\d{3})([01])(\d{3})\b`)
	lightningPattern   = regexp.MustCompile(`\b(?:(OCNL|FRQ|CONS)\s+)?LTG((?:IC|CC|CG|CA)*)(?:\s+(?:DSNT\s+)?(ALQDS|OHD|VC|NE|NW|SE|SW|N|E|S|W)\b)?`)
	tsBeginPattern     = regexp.MustCompile(`\bTSB(\d{2})(\d{2})?\b`)
	cloudInfoPattern   = regexp.MustCompile(`\b(\d)/(\d{3})\b`)
)

// remarkMatchers run in priority order; every match is kept
var remarkMatchers = []remarkMatcher{
	matchStationType,
	matchSeaLevelPressure,
	matchPreciseTemperature,
	matchMaintenance,
	matchLightning,
	matchThunderstormBegin,
	matchCloudInfo,
}

func matchStationType(text string) (Remark, bool) {
	m := stationTypePattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	meaning := "Automated station without precipitation discriminator"
	if m[1] == "2" {
		meaning = "Automated station with precipitation discriminator"
	}
	return Remark{Code: m[0], Meaning: meaning}, true
}

func matchSeaLevelPressure(text string) (Remark, bool) {
	m := slpPattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	n, _ := strconv.Atoi(m[1])
	return Remark{
		Code:    m[0],
		Meaning: fmt.Sprintf("Sea level pressure %.1f hPa", 1000+float64(n)/10),
	}, true
}

func matchPreciseTemperature(text string) (Remark, bool) {
	m := preciseTempPattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	return Remark{
		Code: m[0],
		Meaning: fmt.Sprintf("Temperature %.1f°C, dewpoint %.1f°C",
			tenths(m[1], m[2]), tenths(m[3], m[4])),
	}, true
}

// tenths decodes a sign digit (1 is negative) and three digits in tenths
func tenths(sign, digits string) float64 {
	n, _ := strconv.Atoi(digits)
	v := float64(n) / 10
	if sign == "1" {
		v = -v
	}
	return v
}

func matchMaintenance(text string) (Remark, bool) {
	if !strings.Contains(text, "$") {
		return Remark{}, false
	}
	return Remark{Code: "$", Meaning: "Station requires maintenance"}, true
}

func matchLightning(text string) (Remark, bool) {
	m := lightningPattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	frequency, types, direction := m[1], m[2], m[3]

	meaning := "Lightning"
	if word, ok := lightningFrequency[frequency]; ok {
		meaning = word + " lightning"
	}

	var kinds []string
	for i := 0; i+2 <= len(types); i += 2 {
		kinds = append(kinds, lightningTypes[types[i:i+2]])
	}
	if len(kinds) > 0 {
		meaning += " (" + strings.Join(kinds, ", ") + ")"
	}

	if direction != "" {
		if phrase, ok := lightningDirections[direction]; ok {
			meaning += " " + phrase
		} else {
			meaning += " to the " + direction
		}
	}

	return Remark{Code: strings.TrimSpace(m[0]), Meaning: meaning}, true
}

func matchThunderstormBegin(text string) (Remark, bool) {
	m := tsBeginPattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	if m[2] != "" {
		return Remark{Code: m[0], Meaning: fmt.Sprintf("Thunderstorm began at %s:%s UTC", m[1], m[2])}, true
	}
	return Remark{Code: m[0], Meaning: fmt.Sprintf("Thunderstorm began at minute %s", m[1])}, true
}

func matchCloudInfo(text string) (Remark, bool) {
	m := cloudInfoPattern.FindStringSubmatch(text)
	if m == nil {
		return Remark{}, false
	}
	return Remark{
		Code:    m[0],
		Meaning: fmt.Sprintf("Cloud layer %s oktas, type code %s", m[1], m[2]),
	}, true
}
