package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/yegors/co-efb/internal/airports"
	"github.com/yegors/co-efb/internal/geo"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

// WindReport is the wind resolved against one runway heading. Components are
// absent for variable wind and when the METAR carries no wind group.
type WindReport struct {
	ICAO              string   `json:"icao"`
	Runway            string   `json:"runway,omitempty"`
	HeadingTrue       float64  `json:"heading_true"`
	MagneticVariation float64  `json:"magnetic_variation"`
	WindDirTrue       *int     `json:"wind_dir_true,omitempty"`
	WindSpeedKt       int      `json:"wind_speed_kt"`
	WindGustKt        int      `json:"wind_gust_kt,omitempty"`
	Variable          bool     `json:"variable"`
	HeadwindKt        *float64 `json:"headwind_kt,omitempty"`
	CrosswindKt       *float64 `json:"crosswind_kt,omitempty"`
	GustHeadwindKt    *float64 `json:"gust_headwind_kt,omitempty"`
	GustCrosswindKt   *float64 `json:"gust_crosswind_kt,omitempty"`
	RawMETAR          string   `json:"raw_metar"`
}

// GetWind handles GET /api/wind?icao=XXXX&runway=16L or &heading=157 (magnetic)
func (h *Handler) GetWind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	icao := strings.ToUpper(strings.TrimSpace(q.Get("icao")))
	if !icaoPattern.MatchString(icao) {
		writeError(w, http.StatusBadRequest, "invalid icao")
		return
	}
	runwayIdent := strings.ToUpper(strings.TrimSpace(q.Get("runway")))
	headingParam := q.Get("heading")
	if runwayIdent == "" && headingParam == "" {
		writeError(w, http.StatusBadRequest, "runway or heading is required")
		return
	}

	m, err := h.weatherService.METAR(r.Context(), icao)
	if err != nil {
		if errors.Is(err, weather.ErrNoData) {
			writeError(w, http.StatusNotFound, "no metar for "+icao)
			return
		}
		h.logger.Warn("METAR fetch for wind failed", logger.String("icao", icao), logger.Error(err))
		writeError(w, http.StatusBadGateway, "weather unavailable")
		return
	}
	report, err := h.decode(m.RawOb)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "metar could not be decoded")
		return
	}

	// Position for the declination: the airport database when loaded, else the METAR station
	lat, lon, elevFt := m.Lat, m.Lon, m.Elev/geo.FeetToMeters
	if h.airportsDB != nil {
		if a, err := h.airportsDB.Lookup(icao); err == nil {
			lat, lon, elevFt = a.Lat, a.Lon, float64(a.ElevationFt)
		}
	}
	variation := geo.MagneticVariation(lat, lon, elevFt, h.now())

	out := WindReport{
		ICAO:              icao,
		Runway:            runwayIdent,
		MagneticVariation: round1(variation),
		WindDirTrue:       report.WindDirDeg,
		WindSpeedKt:       report.WindSpeedKt,
		WindGustKt:        report.WindGustKt,
		RawMETAR:          m.RawOb,
	}

	switch {
	case runwayIdent != "":
		heading, status, msg := h.runwayHeading(icao, runwayIdent, variation)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		out.HeadingTrue = heading
	default:
		magnetic, err := strconv.ParseFloat(headingParam, 64)
		if err != nil || magnetic < 0 || magnetic > 360 {
			writeError(w, http.StatusBadRequest, "invalid heading")
			return
		}
		out.HeadingTrue = geo.NormalizeHeading(magnetic + variation)
	}
	out.HeadingTrue = round1(out.HeadingTrue)

	switch {
	case report.WindDirDeg == nil:
		out.Variable = report.WindSpeedKt > 0
	case report.WindSpeedKt == 0:
		out.HeadwindKt, out.CrosswindKt = ptr(0.0), ptr(0.0)
	default:
		dir := float64(*report.WindDirDeg)
		head, cross := geo.WindComponents(dir, float64(report.WindSpeedKt), out.HeadingTrue)
		out.HeadwindKt, out.CrosswindKt = ptr(round1(head)), ptr(round1(cross))
		if report.WindGustKt > 0 {
			gHead, gCross := geo.WindComponents(dir, float64(report.WindGustKt), out.HeadingTrue)
			out.GustHeadwindKt, out.GustCrosswindKt = ptr(round1(gHead)), ptr(round1(gCross))
		}
	}

	WriteJSON(w, http.StatusOK, out)
}

// runwayHeading returns the true heading of a runway end. Ends without a
// surveyed heading fall back to the magnetic runway number.
func (h *Handler) runwayHeading(icao, ident string, variation float64) (float64, int, string) {
	if h.airportsDB != nil {
		_, rwy, err := h.airportsDB.Runway(icao, ident)
		switch {
		case err == nil && rwy.HeadingTrue != nil:
			return *rwy.HeadingTrue, 0, ""
		case err != nil && !errors.Is(err, airports.ErrNotFound):
			return 0, http.StatusInternalServerError, "runway lookup failed"
		}
	}

	magnetic, ok := runwayNumberHeading(ident)
	if !ok {
		return 0, http.StatusNotFound, "unknown runway " + ident
	}
	return geo.NormalizeHeading(magnetic + variation), 0, ""
}

// runwayNumberHeading turns "16L" into 160 degrees magnetic
func runwayNumberHeading(ident string) (float64, bool) {
	digits := strings.TrimRight(ident, "LCRW")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > 36 {
		return 0, false
	}
	return float64(n * 10), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr[T any](v T) *T {
	return &v
}
