package weather

import (
	"time"
)

// METARResponse is one observation from the aviationweather.gov METAR endpoint
type METARResponse struct {
	ICAOID     string       `json:"icaoId"`
	ObsTime    int64        `json:"obsTime"`
	ReportTime string       `json:"reportTime"`
	Temp       *float64     `json:"temp"`
	Dewp       *float64     `json:"dewp"`
	Wdir       any          `json:"wdir"` // degrees, or "VRB"
	Wspd       *int         `json:"wspd"`
	Wgst       *int         `json:"wgst"`
	Visib      *FlexFloat   `json:"visib"` // statute miles, "10+" above ten
	Altim      *float64     `json:"altim"`
	RawOb      string       `json:"rawOb"`
	Name       string       `json:"name"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Elev       float64      `json:"elev"`
	FltCat     string       `json:"fltCat"`
	Clouds     []CloudLayer `json:"clouds"`
}

// CloudLayer is a reported cloud layer, base in feet AGL
type CloudLayer struct {
	Cover string `json:"cover"`
	Base  *int   `json:"base"`
}

// ObservedAt returns the observation time, or the zero time when unknown
func (m *METARResponse) ObservedAt() time.Time {
	if m.ObsTime == 0 {
		return time.Time{}
	}
	return time.Unix(m.ObsTime, 0).UTC()
}

// Ceiling returns the lowest broken, overcast or vertical-visibility layer
func (m *METARResponse) Ceiling() (CloudLayer, bool) {
	var ceiling CloudLayer
	found := false
	for _, c := range m.Clouds {
		if c.Base == nil {
			continue
		}
		switch c.Cover {
		case "BKN", "OVC", "OVX", "VV":
		default:
			continue
		}
		if !found || *c.Base < *ceiling.Base {
			ceiling = c
			found = true
		}
	}
	return ceiling, found
}

// Station converts the observation to the collaborator document form
func (m *METARResponse) Station() CollaboratorStation {
	s := CollaboratorStation{
		StationID:           m.ICAOID,
		RawText:             m.RawOb,
		VisibilityStatuteMi: m.Visib,
	}
	if c, ok := m.Ceiling(); ok {
		base := FlexFloat(*c.Base)
		s.SkyCondition = []SkyCondition{{SkyCover: c.Cover, CloudBaseFtAGL: &base}}
	}
	return s
}
