package weather

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-efb/internal/metar"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// HistoryStore records observations seen by the watcher
type HistoryStore interface {
	SaveMETAR(ctx context.Context, icao, raw string, observedAt time.Time) error
}

// Publisher pushes METAR updates to connected clients
type Publisher interface {
	PublishMETAR(icao string, payload any)
}

// Service manages weather data fetching, caching and the airport watcher
type Service struct {
	config  Config
	client  *Client
	cache   *Cache
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *logger.Logger

	history   HistoryStore
	publisher Publisher

	// Last raw observation per watched airport
	lastRaw   map[string]string
	lastRawMu sync.Mutex

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

// NewService creates a new weather service
func NewService(config Config, client *Client, cache *Cache, clock clockwork.Clock, metrics *observability.Metrics, logger *logger.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		config:  config,
		client:  client,
		cache:   cache,
		clock:   clock,
		metrics: metrics,
		logger:  logger.Named("weather-service"),
		lastRaw: make(map[string]string),
	}
}

// SetHistory sets where the watcher records new observations
func (s *Service) SetHistory(h HistoryStore) {
	s.history = h
}

// SetPublisher sets where the watcher pushes new observations
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// METARs returns the latest observation for each airport, in request order.
// Cached airports are served locally; the rest are fetched in one request.
func (s *Service) METARs(ctx context.Context, icaos []string) ([]METARResponse, error) {
	icaos = NormalizeICAOs(icaos)

	found := make(map[string]*METARResponse, len(icaos))
	var misses []string
	for _, icao := range icaos {
		if m, ok := s.cache.METAR(icao); ok {
			found[icao] = m
			continue
		}
		misses = append(misses, icao)
	}

	if len(misses) > 0 {
		fetched, err := s.client.FetchMETARs(ctx, misses)
		if err != nil {
			return nil, fmt.Errorf("fetch METARs: %w", err)
		}
		for i := range fetched {
			m := &fetched[i]
			s.cache.SetMETAR(m)
			found[strings.ToUpper(m.ICAOID)] = m
		}
	}

	result := make([]METARResponse, 0, len(found))
	for _, icao := range icaos {
		if m, ok := found[icao]; ok {
			result = append(result, *m)
		}
	}
	return result, nil
}

// METAR returns the latest observation for one airport
func (s *Service) METAR(ctx context.Context, icao string) (*METARResponse, error) {
	result, err := s.METARs(ctx, []string{icao})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("METAR for %s: %w", icao, ErrNoData)
	}
	return &result[0], nil
}

// Briefing returns METAR, TAF and NOTAMs for an airport
func (s *Service) Briefing(ctx context.Context, icao string) *Briefing {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if b, ok := s.cache.Briefing(icao); ok {
		return b
	}

	b := s.client.FetchBriefing(ctx, icao)
	b.LastUpdated = s.clock.Now()
	s.cache.SetBriefing(b)
	if b.METAR != nil {
		s.cache.SetMETAR(b.METAR)
	}
	return b
}

// Collaborator builds the station document served to the alternate ranker
func (s *Service) Collaborator(ctx context.Context, icaos []string) (*CollaboratorDocument, error) {
	metars, err := s.METARs(ctx, icaos)
	if err != nil {
		return nil, err
	}

	doc := &CollaboratorDocument{}
	doc.METAR.Data.METAR = make([]CollaboratorStation, 0, len(metars))
	for i := range metars {
		doc.METAR.Data.METAR = append(doc.METAR.Data.METAR, metars[i].Station())
	}
	return doc, nil
}

// CacheStats returns cache statistics
func (s *Service) CacheStats() map[string]any {
	return s.cache.Stats()
}

// Start begins the background refresh of watched airports
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	watch := NormalizeICAOs(s.config.WatchAirports)
	if len(watch) == 0 {
		s.logger.Info("No airports to watch, weather watcher not started")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Starting weather watcher",
		logger.Strings("airports", watch),
		logger.Duration("interval", s.refreshInterval()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh(watch)
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the watcher
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping weather watcher")

	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather watcher stopped")
	return nil
}

// IsStarted returns whether the watcher is currently running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) refreshInterval() time.Duration {
	interval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return interval
}

// backgroundRefresh polls watched airports until the service stops
func (s *Service) backgroundRefresh(watch []string) {
	ticker := s.clock.NewTicker(s.refreshInterval())
	defer ticker.Stop()

	s.refreshWatched(s.ctx, watch)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Background weather refresh stopped")
			return
		case <-ticker.Chan():
			s.logger.Debug("Periodic weather refresh triggered")
			s.refreshWatched(s.ctx, watch)
		}
	}
}

// refreshWatched fetches watched airports, bypassing the cache, and
// records and publishes every observation that changed since the last poll.
func (s *Service) refreshWatched(ctx context.Context, watch []string) {
	start := s.clock.Now()

	metars, err := s.client.FetchMETARs(ctx, watch)
	if err != nil {
		s.logger.Warn("Watcher refresh failed", logger.Error(err))
		return
	}

	changed := 0
	for i := range metars {
		m := &metars[i]
		s.cache.SetMETAR(m)

		icao := strings.ToUpper(m.ICAOID)
		if !s.swapRaw(icao, m.RawOb) {
			continue
		}
		changed++
		s.metrics.WatcherUpdates.Inc()

		observedAt := m.ObservedAt()
		if observedAt.IsZero() {
			observedAt = s.clock.Now()
		}

		if s.history != nil {
			if err := s.history.SaveMETAR(ctx, icao, m.RawOb, observedAt); err != nil {
				s.logger.Warn("Failed to store METAR history",
					logger.String("airport", icao),
					logger.Error(err))
			}
		}

		if s.publisher != nil {
			update := METARUpdate{ICAO: icao, Raw: m.RawOb, ObservedAt: observedAt}
			if report, err := metar.Decode(m.RawOb); err == nil {
				update.Decoded = report
			}
			s.publisher.PublishMETAR(icao, update)
		}
	}

	s.logger.Debug("Watcher refresh completed",
		logger.Int("airports", len(metars)),
		logger.Int("changed", changed),
		logger.Duration("duration", s.clock.Since(start)))
}

// swapRaw stores raw as the latest observation and reports whether it differs
func (s *Service) swapRaw(icao, raw string) bool {
	s.lastRawMu.Lock()
	defer s.lastRawMu.Unlock()
	if s.lastRaw[icao] == raw {
		return false
	}
	s.lastRaw[icao] = raw
	return true
}

// NormalizeICAOs upper-cases, trims and de-duplicates airport codes,
// dropping empties and keeping first-seen order.
func NormalizeICAOs(icaos []string) []string {
	seen := make(map[string]bool, len(icaos))
	out := make([]string, 0, len(icaos))
	for _, icao := range icaos {
		icao = strings.ToUpper(strings.TrimSpace(icao))
		if icao == "" || seen[icao] {
			continue
		}
		seen[icao] = true
		out = append(out, icao)
	}
	return out
}
