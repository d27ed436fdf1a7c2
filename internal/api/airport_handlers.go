package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/yegors/co-efb/internal/airports"
	"github.com/yegors/co-efb/pkg/logger"
)

// GetAirport returns an airport with its runways
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	if h.airportsDB == nil {
		writeError(w, http.StatusServiceUnavailable, "airport database not loaded")
		return
	}
	icao, ok := icaoParam(w, r)
	if !ok {
		return
	}

	a, err := h.airportsDB.Lookup(icao)
	if err != nil {
		if errors.Is(err, airports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "airport not found")
			return
		}
		h.logger.Error("Airport lookup failed", logger.String("icao", icao), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "airport lookup failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"airport":          a,
		"longest_runway_m": a.LongestRunwayM(),
	})
}

// GetNearbyAirports handles GET /api/airports/nearby?lat=&lon=&radius_nm=&min_rwy_m=.
// The candidates can be posted unchanged to /api/alternates.
func (h *Handler) GetNearbyAirports(w http.ResponseWriter, r *http.Request) {
	if h.airportsDB == nil {
		writeError(w, http.StatusServiceUnavailable, "airport database not loaded")
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	radius := float64(h.config.Alternates.NearbyRadiusNM)
	if v := q.Get("radius_nm"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid radius_nm")
			return
		}
		radius = n
	}

	minRwy := 0.0
	if v := q.Get("min_rwy_m"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid min_rwy_m")
			return
		}
		minRwy = n
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"candidates": h.airportsDB.Nearby(lat, lon, radius, minRwy),
	})
}
