package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/co-efb/internal/config"
	"github.com/yegors/co-efb/internal/websocket"
	"github.com/yegors/co-efb/pkg/logger"
)

// Router wires the API handlers, the websocket hub and the static client
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new router. wsServer may be nil.
func NewRouter(handler *Handler, wsServer *websocket.Server, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:  handler,
		wsServer: wsServer,
		config:   config,
		logger:   logger.Named("router"),
	}
}

// Routes returns the HTTP handler for every listener
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(rt.config.Server.CORSAllowedOrigins))

	h := rt.handler
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/weather", h.GetWeather)
		r.Post("/alternates", h.RankAlternates)
		r.Get("/wind", h.GetWind)

		r.Route("/metar", func(r chi.Router) {
			r.Post("/decode", h.DecodeMETAR)
			r.Get("/{icao}", h.GetMETAR)
			r.Get("/{icao}/history", h.GetMETARHistory)
		})

		r.Route("/airports", func(r chi.Router) {
			r.Get("/nearby", h.GetNearbyAirports)
			r.Get("/{icao}", h.GetAirport)
		})

		r.Get("/briefing/{icao}", h.GetBriefing)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.GetNotifications)
			r.Post("/", h.CreateNotification)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	if rt.config.Metrics.Enabled {
		r.Handle(rt.config.Metrics.Path, promhttp.Handler())
	}

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// accessLog logs every request at debug level
func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Debug("HTTP request",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.Int("status", ww.Status()),
					logger.Int("bytes", ww.BytesWritten()),
					logger.Duration("duration", time.Since(start)),
					logger.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// cors answers preflight requests and sets the allow headers for permitted origins
func cors(allowed []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || slices.Contains(allowed, origin)) {
				if wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
