package metar

import (
	"fmt"
	"strings"
)

// describe renders the decoded fields as a single paragraph, skipping any
// field that is empty or not available. The trailing RAW remark is left out.
func describe(r *Report) string {
	var parts []string
	add := func(format string, value string) {
		if value == "" || value == NotAvailable {
			return
		}
		parts = append(parts, fmt.Sprintf(format, value))
	}

	add("%s observation,", r.Station)
	add("%s.", lowerFirst(r.Timestamp))
	add("Wind %s.", lowerFirst(r.Wind))
	add("Visibility %s.", lowerFirst(r.Visibility))

	if len(r.Weather) > 0 {
		weather := make([]string, len(r.Weather))
		for i, w := range r.Weather {
			weather[i] = lowerFirst(w)
		}
		add("Weather: %s.", strings.Join(weather, ", "))
	}

	if len(r.Clouds) > 0 {
		layers := make([]string, len(r.Clouds))
		for i, c := range r.Clouds {
			layers[i] = fmt.Sprintf("%s at %s", lowerFirst(c.Coverage), c.Altitude)
			if c.Type != "" {
				layers[i] += " (" + lowerFirst(c.Type) + ")"
			}
		}
		add("Clouds: %s.", strings.Join(layers, ", "))
	}

	add("Temperature %s.", r.Temperature)
	add("Dewpoint %s.", r.Dewpoint)
	add("Altimeter %s.", r.Altimeter)
	add("%s.", r.Forecast)

	if len(r.Remarks) > 1 {
		meanings := make([]string, 0, len(r.Remarks)-1)
		for _, rm := range r.Remarks[:len(r.Remarks)-1] {
			meanings = append(meanings, lowerFirst(rm.Meaning))
		}
		add("Remarks: %s.", strings.Join(meanings, "; "))
	}

	return strings.Join(parts, " ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
