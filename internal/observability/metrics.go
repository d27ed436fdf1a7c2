package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the EFB server.
type Metrics struct {
	METARDecodes       *prometheus.CounterVec // labels: outcome={ok,invalid}
	AlternatesRequests *prometheus.CounterVec // labels: outcome={ok,invalid,error}
	AlternatesWxLookup *prometheus.CounterVec // labels: outcome={ok,degraded}

	// Upstream weather metrics.
	WeatherFetches       *prometheus.CounterVec   // labels: type={metar,taf,notams}, outcome={success,error}
	WeatherFetchDuration *prometheus.HistogramVec // labels: type
	WeatherCache         *prometheus.CounterVec   // labels: result={hit,miss}
	WatcherUpdates       prometheus.Counter

	// Dispatch metrics.
	Notifications *prometheus.CounterVec // labels: channel={store,discord,hoppie,websocket}, outcome={success,error,skipped}
	DedupHits     prometheus.Counter

	WebsocketClients prometheus.Gauge
	BriefingSummary  *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all server metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		METARDecodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "metar_decodes_total",
			Help:      "METAR decode attempts by outcome.",
		}, []string{"outcome"}),
		AlternatesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "alternates_requests_total",
			Help:      "Alternate ranking requests by outcome.",
		}, []string{"outcome"}),
		AlternatesWxLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "alternates_weather_lookups_total",
			Help:      "Weather lookups made while ranking alternates, by outcome.",
		}, []string{"outcome"}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "weather_fetches_total",
			Help:      "Upstream weather requests by product and outcome.",
		}, []string{"type", "outcome"}),
		WeatherFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "efb",
			Name:      "weather_fetch_duration_seconds",
			Help:      "Upstream weather request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "weather_cache_total",
			Help:      "METAR cache lookups by result.",
		}, []string{"result"}),
		WatcherUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "watcher_metar_updates_total",
			Help:      "New METARs observed by the airport watcher.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		DedupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "notification_dedup_hits_total",
			Help:      "Notifications suppressed as duplicates.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "efb",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		BriefingSummary: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "efb",
			Name:      "briefing_summaries_total",
			Help:      "AI briefing summaries by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.METARDecodes,
		m.AlternatesRequests,
		m.AlternatesWxLookup,
		m.WeatherFetches,
		m.WeatherFetchDuration,
		m.WeatherCache,
		m.WatcherUpdates,
		m.Notifications,
		m.DedupHits,
		m.WebsocketClients,
		m.BriefingSummary,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		METARDecodes:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "metar_decodes_total"}, []string{"outcome"}),
		AlternatesRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "alternates_requests_total"}, []string{"outcome"}),
		AlternatesWxLookup:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "alternates_weather_lookups_total"}, []string{"outcome"}),
		WeatherFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "weather_fetches_total"}, []string{"type", "outcome"}),
		WeatherFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "efb", Name: "weather_fetch_duration_seconds"}, []string{"type"}),
		WeatherCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "weather_cache_total"}, []string{"result"}),
		WatcherUpdates:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "efb", Name: "watcher_metar_updates_total"}),
		Notifications:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "notifications_total"}, []string{"channel", "outcome"}),
		DedupHits:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "efb", Name: "notification_dedup_hits_total"}),
		WebsocketClients:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "efb", Name: "websocket_clients"}),
		BriefingSummary:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "efb", Name: "briefing_summaries_total"}, []string{"outcome"}),
	}
}
