package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/co-efb/internal/alternates"
	"github.com/yegors/co-efb/internal/airports"
	"github.com/yegors/co-efb/internal/briefing"
	"github.com/yegors/co-efb/internal/config"
	"github.com/yegors/co-efb/internal/notify"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/internal/storage/sqlite"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

// Request bodies larger than this are rejected
const maxBodyBytes = 1 << 20

// WeatherService is the weather data the handlers read
type WeatherService interface {
	METAR(ctx context.Context, icao string) (*weather.METARResponse, error)
	Collaborator(ctx context.Context, icaos []string) (*weather.CollaboratorDocument, error)
	CacheStats() map[string]any
	IsStarted() bool
}

// AlternateRanker ranks alternate airports
type AlternateRanker interface {
	Rank(ctx context.Context, req alternates.Request) (*alternates.Result, error)
}

// AirportDatabase resolves airports and runways
type AirportDatabase interface {
	Len() int
	Lookup(icao string) (*airports.Airport, error)
	Runway(icao, ident string) (*airports.Airport, *airports.Runway, error)
	Nearby(lat, lon, radiusNM, minRwyM float64) []alternates.Candidate
}

// BriefingBuilder assembles airport briefings
type BriefingBuilder interface {
	Build(ctx context.Context, icao string) *briefing.Briefing
}

// Notifier sends and lists crew notifications
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) (*notify.Delivery, error)
	List(ctx context.Context, limit int, unreadOnly bool) ([]*notify.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

// HistoryStore reads stored METARs and reports database health
type HistoryStore interface {
	METARHistory(ctx context.Context, icao string, limit int) ([]sqlite.METARRecord, error)
	Ping() error
}

// Handler contains the API handlers
type Handler struct {
	weatherService WeatherService
	ranker         AlternateRanker
	airportsDB     AirportDatabase
	briefings      BriefingBuilder
	notifier       Notifier
	history        HistoryStore
	config         *config.Config
	metrics        *observability.Metrics
	logger         *logger.Logger
	now            func() time.Time
}

// NewHandler creates a new API handler. airportsDB, briefings, notifier and
// history may be nil; their endpoints then answer 503.
func NewHandler(weatherService WeatherService, ranker AlternateRanker, airportsDB AirportDatabase, briefings BriefingBuilder, notifier Notifier, history HistoryStore, config *config.Config, metrics *observability.Metrics, logger *logger.Logger) *Handler {
	return &Handler{
		weatherService: weatherService,
		ranker:         ranker,
		airportsDB:     airportsDB,
		briefings:      briefings,
		notifier:       notifier,
		history:        history,
		config:         config,
		metrics:        metrics,
		logger:         logger.Named("api-handler"),
		now:            time.Now,
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]any{}

	if h.history != nil {
		if err := h.history.Ping(); err != nil {
			status = "degraded"
			checks["storage"] = err.Error()
		} else {
			checks["storage"] = "ok"
		}
	}
	if h.weatherService != nil {
		checks["weather_watcher"] = h.weatherService.IsStarted()
		checks["weather_cache"] = h.weatherService.CacheStats()
	}
	if h.airportsDB != nil {
		checks["airports"] = h.airportsDB.Len()
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"time":   h.now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}

// GetWeather serves the collaborator document for ?icaos=A,B,...
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	icaos := weather.NormalizeICAOs(strings.Split(r.URL.Query().Get("icaos"), ","))
	if len(icaos) == 0 {
		writeError(w, http.StatusBadRequest, "icaos is required")
		return
	}

	doc, err := h.weatherService.Collaborator(r.Context(), icaos)
	if err != nil {
		h.logger.Warn("Weather lookup failed",
			logger.Strings("icaos", icaos),
			logger.Error(err))
		writeError(w, http.StatusBadGateway, "weather unavailable")
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// RankAlternates handles POST /api/alternates
func (h *Handler) RankAlternates(w http.ResponseWriter, r *http.Request) {
	var req alternates.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.AlternatesRequests.WithLabelValues("invalid").Inc()
		h.logger.Debug("Rejected alternates payload", logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.ranker.Rank(r.Context(), req)
	switch {
	case errors.Is(err, alternates.ErrInvalidPayload):
		h.metrics.AlternatesRequests.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	case err != nil:
		h.metrics.AlternatesRequests.WithLabelValues("error").Inc()
		h.logger.Error("Alternate ranking failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "alternate calc failed")
		return
	}

	h.metrics.AlternatesRequests.WithLabelValues("ok").Inc()
	WriteJSON(w, http.StatusOK, result)
}

// GetBriefing returns the airport briefing
func (h *Handler) GetBriefing(w http.ResponseWriter, r *http.Request) {
	if h.briefings == nil {
		writeError(w, http.StatusServiceUnavailable, "briefings unavailable")
		return
	}
	icao, ok := icaoParam(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.briefings.Build(r.Context(), icao))
}

// decodeJSON reads a single JSON document from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
