package metar

import (
	"regexp"
	"strings"
)

var remarksSeparator = regexp.MustCompile(`(?:^|\s)RMK(?:\s|$)`)

// Decode parses a raw METAR into a Report. It fails with ErrInvalidMETAR
// only when the body has fewer than four tokens or the second token is not a
// DDHHMMZ timestamp; every other group degrades to a default when it does not
// parse.
func Decode(raw string) (*Report, error) {
	raw = strings.TrimSpace(raw)
	body, remarks := splitRemarks(raw)

	tokens := strings.Fields(body)
	if len(tokens) < 4 {
		return nil, ErrInvalidMETAR
	}

	setTime := matchTimestamp(tokens[1])
	if setTime == nil {
		return nil, ErrInvalidMETAR
	}

	r := newReport(raw, tokens[0])
	setTime(r)

	i := 2
	if tokens[i] == "AUTO" || tokens[i] == "COR" {
		i++
	}

	if i < len(tokens) {
		if apply := matchWind(tokens[i]); apply != nil {
			apply(r)
			i++
			if i < len(tokens) {
				if apply := matchWindVariation(tokens[i]); apply != nil {
					apply(r)
					i++
				}
			}
		}
	}

	if i < len(tokens) {
		if i+1 < len(tokens) {
			if apply := matchSplitVisibility(tokens[i], tokens[i+1]); apply != nil {
				apply(r)
				i += 2
			}
		}
		if r.Visibility == "" {
			if apply := matchVisibility(tokens[i]); apply != nil {
				apply(r)
				i++
			}
		}
	}

	for ; i < len(tokens) && !endsWeather(tokens[i]); i++ {
		if apply := matchWeather(tokens[i]); apply != nil {
			apply(r)
		}
	}

	// Tokens no matcher recognises, trend markers included, are skipped.
	for ; i < len(tokens); i++ {
		for _, m := range bodyMatchers {
			if apply := m(tokens[i]); apply != nil {
				apply(r)
				break
			}
		}
	}

	if remarks != "" {
		for _, m := range remarkMatchers {
			if remark, ok := m(remarks); ok {
				r.Remarks = append(r.Remarks, remark)
			}
		}
		r.Remarks = append(r.Remarks, Remark{Code: "RAW", Meaning: remarks})
	}

	r.PlainEnglish = describe(r)
	return r, nil
}

// splitRemarks separates the main body from the text after the RMK token
func splitRemarks(raw string) (body, remarks string) {
	loc := remarksSeparator.FindStringIndex(raw)
	if loc == nil {
		return raw, ""
	}
	return raw[:loc[0]], strings.TrimSpace(raw[loc[1]:])
}
