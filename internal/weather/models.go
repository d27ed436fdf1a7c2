package weather

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoData is returned when the upstream API has nothing for the requested airport
var ErrNoData = errors.New("no weather data")

// Config represents the weather service configuration
type Config struct {
	APIBaseURL             string   `toml:"api_base_url"`
	RequestTimeoutSeconds  int      `toml:"request_timeout_seconds"`
	MaxRetries             int      `toml:"max_retries"`
	FetchMETAR             bool     `toml:"fetch_metar"`
	FetchTAF               bool     `toml:"fetch_taf"`
	FetchNOTAMs            bool     `toml:"fetch_notams"`
	NOTAMsBaseURL          string   `toml:"notams_api_base_url"`
	CacheExpiryMinutes     int      `toml:"cache_expiry_minutes"`
	CacheSize              int      `toml:"cache_size"`
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes"`
	WatchAirports          []string `toml:"watch_airports"`
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:             "https://aviationweather.gov/api/data",
		RequestTimeoutSeconds:  10,
		MaxRetries:             2,
		FetchMETAR:             true,
		FetchTAF:               true,
		FetchNOTAMs:            true,
		NOTAMsBaseURL:          "https://node.windy.com/airports/notams",
		CacheExpiryMinutes:     10,
		CacheSize:              512,
		RefreshIntervalMinutes: 5,
	}
}

// WeatherType represents the type of weather data
type WeatherType string

const (
	WeatherTypeMETAR  WeatherType = "metar"
	WeatherTypeTAF    WeatherType = "taf"
	WeatherTypeNOTAMs WeatherType = "notams"
)

// TAFResponse is a single forecast from the aviationweather.gov TAF endpoint
type TAFResponse struct {
	ICAOID        string `json:"icaoId"`
	RawTAF        string `json:"rawTAF"`
	IssueTime     string `json:"issueTime"`
	ValidTimeFrom int64  `json:"validTimeFrom"`
	ValidTimeTo   int64  `json:"validTimeTo"`
}

// Briefing is everything the weather APIs return for one airport
type Briefing struct {
	ICAO        string         `json:"icao"`
	METAR       *METARResponse `json:"metar,omitempty"`
	TAF         *TAFResponse   `json:"taf,omitempty"`
	NOTAMs      any            `json:"notams,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
	FetchErrors []string       `json:"fetch_errors"`
}

// METARUpdate is published when the watcher sees a new observation
type METARUpdate struct {
	ICAO       string    `json:"icao"`
	Raw        string    `json:"raw"`
	ObservedAt time.Time `json:"observed_at"`
	Decoded    any       `json:"decoded,omitempty"`
}

// FlexFloat decodes a JSON number or a numeric string such as "10+".
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	s = strings.TrimSuffix(s, "+")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Ptr returns f as a *float64, or nil when f is nil
func (f *FlexFloat) Ptr() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// CollaboratorDocument is the body of GET /api/weather. Its shape is shared
// with the alternate ranker's weather lookup.
type CollaboratorDocument struct {
	METAR CollaboratorMETAR `json:"metar"`
}

// CollaboratorMETAR wraps the station list
type CollaboratorMETAR struct {
	Data CollaboratorData `json:"data"`
}

// CollaboratorData holds one entry per station
type CollaboratorData struct {
	METAR []CollaboratorStation `json:"METAR"`
}

// CollaboratorStation is one airport's conditions. Either identifier may be
// set, visibility is in statute miles or metres, and the first sky condition
// is the ceiling.
type CollaboratorStation struct {
	StationID           string         `json:"station_id,omitempty"`
	Station             string         `json:"station,omitempty"`
	RawText             string         `json:"raw_text,omitempty"`
	VisibilityStatuteMi *FlexFloat     `json:"visibility_statute_mi,omitempty"`
	Visibility          *FlexFloat     `json:"visibility,omitempty"`
	SkyCondition        []SkyCondition `json:"sky_condition,omitempty"`
	Ceiling             *FlexFloat     `json:"ceiling,omitempty"`
}

// SkyCondition is a ceiling-forming cloud layer
type SkyCondition struct {
	SkyCover       string     `json:"sky_cover"`
	CloudBaseFtAGL *FlexFloat `json:"cloud_base_ft_agl,omitempty"`
}

// ICAO returns whichever station identifier is present
func (s CollaboratorStation) ICAO() string {
	if s.StationID != "" {
		return s.StationID
	}
	return s.Station
}
