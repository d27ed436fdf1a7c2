package metar

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yegors/co-efb/internal/geo"
)

// update is a partial change applied to a report under construction
type update func(r *Report)

// matcher inspects one token and returns the update it implies, or nil when
// the token is not of the matcher's kind.
type matcher func(token string) update

var (
	timestampPattern     = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})Z$`)
	windPattern          = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(G(\d{2,3}))?KT$`)
	windVariationPattern = regexp.MustCompile(`^(\d{3})V(\d{3})$`)
	metersPattern        = regexp.MustCompile(`^(\d{4})$`)
	statuteMilesPattern  = regexp.MustCompile(`^([MP])?(\d+(?:/\d+)?)SM$`)
	wholeMilesPattern    = regexp.MustCompile(`^\d+$`)
	weatherPattern       = regexp.MustCompile(`^(VC)?([-+])?([A-Z]{2,})$`)
	cloudPattern         = regexp.MustCompile(`^(FEW|SCT|BKN|OVC|VV|NCD)(\d{3})(CB|TCU|///)?$`)
	temperaturePattern   = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})?$`)
	altimeterPattern     = regexp.MustCompile(`^A(\d{4})$`)
	qnhPattern           = regexp.MustCompile(`^Q(\d{4})$`)
)

// hPaPerInHg converts between the two altimeter units
const hPaPerInHg = 33.8639

// Tokens that close the present-weather phase even though they are not
// cloud groups.
var skyClearTokens = map[string]bool{
	"SKC": true,
	"CLR": true,
	"NSC": true,
	"NCD": true,
}

// Trend markers close the present-weather phase
var trendTokens = map[string]bool{
	"BECMG": true,
	"TEMPO": true,
}

// bodyMatchers run, in order, against every token from the first cloud
// group onward. The first matcher to return an update wins.
var bodyMatchers = []matcher{
	matchCloud,
	matchTemperature,
	matchAltimeter,
	matchQNH,
	matchNoSig,
}

func matchTimestamp(tok string) update {
	m := timestampPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	return func(r *Report) {
		r.Day, _ = strconv.Atoi(m[1])
		r.Hour, _ = strconv.Atoi(m[2])
		r.Minute, _ = strconv.Atoi(m[3])
		r.Timestamp = fmt.Sprintf("Day %s at %s:%s UTC", m[1], m[2], m[3])
	}
}

func matchWind(tok string) update {
	m := windPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	dir, speed, gust := m[1], m[2], m[4]
	return func(r *Report) {
		r.WindSpeedKt, _ = strconv.Atoi(speed)
		if gust != "" {
			r.WindGustKt, _ = strconv.Atoi(gust)
		}

		if dir == "VRB" {
			r.Wind = fmt.Sprintf("Variable at %s knots", speed)
		} else {
			deg, _ := strconv.Atoi(dir)
			r.WindDirDeg = &deg
			r.Wind = fmt.Sprintf("From %s° at %s knots", dir, speed)
		}
		if gust != "" {
			r.Wind += fmt.Sprintf(", gusting to %s knots", gust)
		}
	}
}

func matchWindVariation(tok string) update {
	m := windVariationPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	return func(r *Report) {
		r.Wind += fmt.Sprintf(", varying between %s° and %s°", m[1], m[2])
	}
}

func matchVisibility(tok string) update {
	switch tok {
	case "CAVOK":
		return visibility("Ceiling and visibility OK", 10000)
	case "9999":
		return visibility("10 kilometers or more", 10000)
	}

	if m := metersPattern.FindStringSubmatch(tok); m != nil {
		meters, _ := strconv.Atoi(m[1])
		return visibility(fmt.Sprintf("%d meters", meters), float64(meters))
	}

	if m := statuteMilesPattern.FindStringSubmatch(tok); m != nil {
		miles, ok := parseFraction(m[2])
		if !ok {
			return nil
		}
		return visibility(milesPhrase(m[1], m[2], miles), miles*geo.MetersPerSM)
	}

	return nil
}

// matchSplitVisibility handles the two-token form "1 1/2SM"
func matchSplitVisibility(whole, frac string) update {
	if !wholeMilesPattern.MatchString(whole) {
		return nil
	}
	m := statuteMilesPattern.FindStringSubmatch(frac)
	if m == nil || m[1] != "" || !strings.Contains(m[2], "/") {
		return nil
	}
	w, _ := strconv.ParseFloat(whole, 64)
	f, ok := parseFraction(m[2])
	if !ok {
		return nil
	}
	miles := w + f
	return visibility(milesPhrase("", whole+" "+m[2], miles), miles*geo.MetersPerSM)
}

func visibility(phrase string, meters float64) update {
	return func(r *Report) {
		r.Visibility = phrase
		r.VisibilityM = &meters
	}
}

func milesPhrase(qualifier, value string, miles float64) string {
	unit := "statute miles"
	if miles == 1 {
		unit = "statute mile"
	}
	switch qualifier {
	case "M":
		return fmt.Sprintf("Less than %s %s", value, unit)
	case "P":
		return fmt.Sprintf("More than %s %s", value, unit)
	}
	return fmt.Sprintf("%s %s", value, unit)
}

func parseFraction(s string) (float64, bool) {
	num, den, isFraction := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if !isFraction {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}

// endsWeather reports whether tok belongs to the cloud/temperature/pressure
// part of the report rather than to present weather.
func endsWeather(tok string) bool {
	if skyClearTokens[tok] || trendTokens[tok] || tok == "NOSIG" {
		return true
	}
	for _, m := range bodyMatchers {
		if m(tok) != nil {
			return true
		}
	}
	return false
}

func matchWeather(tok string) update {
	if phrase, ok := weatherWords[tok]; ok {
		return func(r *Report) { r.Weather = append(r.Weather, phrase) }
	}

	m := weatherPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	vicinity, intensity, codes := m[1] != "", m[2], m[3]

	var words []string
	for i := 0; i < len(codes); i += 2 {
		code := codes[i:min(i+2, len(codes))]
		word, ok := phenomena[code]
		if !ok {
			word = code
		}
		if len(words) > 0 && joinWithWith[codes[i-2:i]] {
			word = "with " + word
		}
		words = append(words, word)
	}

	phrase := strings.Join(words, " ")
	switch intensity {
	case "-":
		phrase = "Light " + phrase
	case "+":
		phrase = "Heavy " + phrase
	}
	if vicinity {
		phrase += " in vicinity"
	}
	phrase = capitalize(phrase)

	return func(r *Report) { r.Weather = append(r.Weather, phrase) }
}

func matchCloud(tok string) update {
	m := cloudPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	hundreds, _ := strconv.Atoi(m[2])
	cloud := Cloud{
		Coverage: cloudCoverage[m[1]],
		Altitude: fmt.Sprintf("%d ft", hundreds*100),
		Type:     cloudTypes[m[3]],
		BaseFt:   hundreds * 100,
	}
	return func(r *Report) {
		r.Clouds = append(r.Clouds, cloud)
		switch m[1] {
		case "BKN", "OVC", "VV":
			if r.CeilingFt == nil || cloud.BaseFt < *r.CeilingFt {
				base := cloud.BaseFt
				r.CeilingFt = &base
			}
		}
	}
}

func matchTemperature(tok string) update {
	m := temperaturePattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	return func(r *Report) {
		r.Temperature = celsius(m[1])
		if m[2] != "" {
			r.Dewpoint = celsius(m[2])
		}
	}
}

func celsius(group string) string {
	return strings.Replace(group, "M", "-", 1) + "°C"
}

func matchAltimeter(tok string) update {
	m := altimeterPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	hundredths, _ := strconv.Atoi(m[1])
	return func(r *Report) {
		r.Altimeter = fmt.Sprintf("%.2f inHg", float64(hundredths)/100)
	}
}

func matchQNH(tok string) update {
	m := qnhPattern.FindStringSubmatch(tok)
	if m == nil {
		return nil
	}
	hPa, _ := strconv.Atoi(m[1])
	return func(r *Report) {
		r.Altimeter = fmt.Sprintf("%.2f inHg (%d hPa)", HPaToInHg(float64(hPa)), hPa)
	}
}

// HPaToInHg converts a pressure to inches of mercury rounded to two decimals
func HPaToInHg(hPa float64) float64 {
	return math.Round(hPa/hPaPerInHg*100) / 100
}

func matchNoSig(tok string) update {
	if tok != "NOSIG" {
		return nil
	}
	return func(r *Report) { r.Forecast = "No significant change expected" }
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
