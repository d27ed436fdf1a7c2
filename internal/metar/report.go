package metar

import "errors"

// ErrInvalidMETAR is returned when a report fails minimum structural
// validation: fewer than four body tokens or a malformed DDHHMMZ group.
var ErrInvalidMETAR = errors.New("invalid metar")

// NotAvailable is the placeholder for values missing from the report
const NotAvailable = "N/A"

// Cloud is a single decoded cloud layer
type Cloud struct {
	Coverage string `json:"coverage"`
	Altitude string `json:"altitude"`
	Type     string `json:"type,omitempty"`
	BaseFt   int    `json:"baseFt"`
}

// Remark is a decoded entry from the RMK section
type Remark struct {
	Code    string `json:"code"`
	Meaning string `json:"meaning"`
}

// Report is a decoded METAR
type Report struct {
	Raw          string   `json:"raw"`
	Station      string   `json:"station"`
	Timestamp    string   `json:"timestamp"`
	Wind         string   `json:"wind"`
	Visibility   string   `json:"visibility"`
	Weather      []string `json:"weather"`
	Clouds       []Cloud  `json:"clouds"`
	Temperature  string   `json:"temperature"`
	Dewpoint     string   `json:"dewpoint"`
	Altimeter    string   `json:"altimeter"`
	Forecast     string   `json:"forecast"`
	Remarks      []Remark `json:"remarks"`
	PlainEnglish string   `json:"plainEnglish"`

	// Numeric values for callers that compute with the report.
	// WindDirDeg is nil for variable wind or when no wind group was reported.
	Day         int      `json:"day"`
	Hour        int      `json:"hour"`
	Minute      int      `json:"minute"`
	WindDirDeg  *int     `json:"windDirDeg,omitempty"`
	WindSpeedKt int      `json:"windSpeedKt"`
	WindGustKt  int      `json:"windGustKt,omitempty"`
	VisibilityM *float64 `json:"visibilityM,omitempty"`
	CeilingFt   *int     `json:"ceilingFt,omitempty"`
}

func newReport(raw, station string) *Report {
	return &Report{
		Raw:         raw,
		Station:     station,
		Wind:        "Calm",
		Weather:     []string{},
		Clouds:      []Cloud{},
		Temperature: NotAvailable,
		Dewpoint:    NotAvailable,
		Altimeter:   NotAvailable,
		Remarks:     []Remark{},
	}
}
