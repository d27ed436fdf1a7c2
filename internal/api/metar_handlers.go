package api

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-efb/internal/metar"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

var icaoPattern = regexp.MustCompile(`^[A-Z0-9]{3,4}$`)

const (
	defaultHistoryLimit = 24
	maxHistoryLimit     = 500
)

// LiveMETAR is a fetched observation with its decode
type LiveMETAR struct {
	ICAO        string        `json:"icao"`
	Raw         string        `json:"raw"`
	FlightCat   string        `json:"flight_category,omitempty"`
	ObservedAt  *time.Time    `json:"observed_at,omitempty"`
	Decoded     *metar.Report `json:"decoded,omitempty"`
	DecodeError string        `json:"decode_error,omitempty"`
}

// DecodeMETAR handles POST /api/metar/decode {"raw": "..."}
func (h *Handler) DecodeMETAR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Raw string `json:"raw"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metar")
		return
	}

	report, err := h.decode(req.Raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid metar")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// GetMETAR fetches and decodes the live METAR for an airport
func (h *Handler) GetMETAR(w http.ResponseWriter, r *http.Request) {
	icao, ok := icaoParam(w, r)
	if !ok {
		return
	}

	m, err := h.weatherService.METAR(r.Context(), icao)
	if err != nil {
		if errors.Is(err, weather.ErrNoData) {
			writeError(w, http.StatusNotFound, "no metar for "+icao)
			return
		}
		h.logger.Warn("METAR fetch failed", logger.String("icao", icao), logger.Error(err))
		writeError(w, http.StatusBadGateway, "weather unavailable")
		return
	}

	live := LiveMETAR{
		ICAO:      icao,
		Raw:       m.RawOb,
		FlightCat: m.FltCat,
	}
	if t := m.ObservedAt(); !t.IsZero() {
		live.ObservedAt = &t
	}
	if report, err := h.decode(m.RawOb); err != nil {
		live.DecodeError = err.Error()
	} else {
		live.Decoded = report
	}

	WriteJSON(w, http.StatusOK, live)
}

// GetMETARHistory returns stored observations, newest first
func (h *Handler) GetMETARHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	icao, ok := icaoParam(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.METARHistory(r.Context(), icao, limit)
	if err != nil {
		h.logger.Error("METAR history query failed", logger.String("icao", icao), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"icao":    icao,
		"reports": records,
	})
}

// decode runs the decoder and counts the outcome
func (h *Handler) decode(raw string) (*metar.Report, error) {
	report, err := metar.Decode(raw)
	if err != nil {
		h.metrics.METARDecodes.WithLabelValues("invalid").Inc()
		return nil, err
	}
	h.metrics.METARDecodes.WithLabelValues("ok").Inc()
	return report, nil
}

// icaoParam reads and validates the {icao} path parameter
func icaoParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	icao := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "icao")))
	if !icaoPattern.MatchString(icao) {
		writeError(w, http.StatusBadRequest, "invalid icao")
		return "", false
	}
	return icao, true
}
