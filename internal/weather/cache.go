package weather

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// Cache holds recent weather per airport. Entries expire after
// cache_expiry_minutes and the least recently used are evicted beyond
// cache_size.
type Cache struct {
	metars    *expirable.LRU[string, *METARResponse]
	briefings *expirable.LRU[string, *Briefing]
	metrics   *observability.Metrics
	logger    *logger.Logger
}

// NewCache creates a new weather cache
func NewCache(config Config, metrics *observability.Metrics, logger *logger.Logger) *Cache {
	ttl := time.Duration(config.CacheExpiryMinutes) * time.Minute
	return &Cache{
		metars:    expirable.NewLRU[string, *METARResponse](config.CacheSize, nil, ttl),
		briefings: expirable.NewLRU[string, *Briefing](config.CacheSize, nil, ttl),
		metrics:   metrics,
		logger:    logger.Named("weather-cache"),
	}
}

// METAR returns the cached observation for an airport
func (c *Cache) METAR(icao string) (*METARResponse, bool) {
	m, ok := c.metars.Get(cacheKey(icao))
	if ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
	} else {
		c.metrics.WeatherCache.WithLabelValues("miss").Inc()
	}
	return m, ok
}

// SetMETAR stores an observation under its station identifier
func (c *Cache) SetMETAR(m *METARResponse) {
	if m == nil || m.ICAOID == "" {
		return
	}
	c.metars.Add(cacheKey(m.ICAOID), m)
	c.logger.Debug("METAR cached", logger.String("airport", m.ICAOID))
}

// Briefing returns the cached briefing for an airport
func (c *Cache) Briefing(icao string) (*Briefing, bool) {
	return c.briefings.Get(cacheKey(icao))
}

// SetBriefing stores a briefing. Briefings where every product failed are
// not cached so the next request retries upstream.
func (c *Cache) SetBriefing(b *Briefing) {
	if b == nil || (b.METAR == nil && b.TAF == nil && b.NOTAMs == nil) {
		return
	}
	c.briefings.Add(cacheKey(b.ICAO), b)
	c.logger.Debug("Briefing cached",
		logger.String("airport", b.ICAO),
		logger.Int("error_count", len(b.FetchErrors)))
}

// Invalidate drops everything cached for an airport
func (c *Cache) Invalidate(icao string) {
	c.metars.Remove(cacheKey(icao))
	c.briefings.Remove(cacheKey(icao))
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]any {
	return map[string]any{
		"metars":    c.metars.Len(),
		"briefings": c.briefings.Len(),
	}
}

func cacheKey(icao string) string {
	return strings.ToUpper(strings.TrimSpace(icao))
}
