package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// Client handles HTTP requests to weather APIs
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *logger.Logger

	// base delay before the first retry, doubled on each further attempt
	backoff time.Duration
}

// NewClient creates a new weather API client
func NewClient(config Config, metrics *observability.Metrics, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		metrics: metrics,
		logger:  logger.Named("weather-client"),
		backoff: 500 * time.Millisecond,
	}
}

// FetchMETARs fetches the latest METAR for each airport in a single request.
// Airports without a current observation are simply absent from the result.
func (c *Client) FetchMETARs(ctx context.Context, icaos []string) ([]METARResponse, error) {
	if len(icaos) == 0 {
		return nil, nil
	}
	ids := strings.Join(icaos, ",")
	u := fmt.Sprintf("%s/metar?ids=%s&format=json", c.config.APIBaseURL, url.QueryEscape(ids))

	var result []METARResponse
	if err := c.fetchWithRetry(ctx, u, WeatherTypeMETAR, ids, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FetchMETAR fetches METAR data for the specified airport
func (c *Client) FetchMETAR(ctx context.Context, airportCode string) (*METARResponse, error) {
	result, err := c.FetchMETARs(ctx, []string{airportCode})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("METAR for %s: %w", airportCode, ErrNoData)
	}
	// Return the first (latest) observation
	return &result[0], nil
}

// FetchTAF fetches TAF data for the specified airport
func (c *Client) FetchTAF(ctx context.Context, airportCode string) (*TAFResponse, error) {
	u := fmt.Sprintf("%s/taf?ids=%s&format=json", c.config.APIBaseURL, url.QueryEscape(airportCode))

	var result []TAFResponse
	if err := c.fetchWithRetry(ctx, u, WeatherTypeTAF, airportCode, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("TAF for %s: %w", airportCode, ErrNoData)
	}
	return &result[0], nil
}

// FetchNOTAMs fetches NOTAM data for the specified airport
func (c *Client) FetchNOTAMs(ctx context.Context, airportCode string) (any, error) {
	u := fmt.Sprintf("%s/%s", c.config.NOTAMsBaseURL, url.PathEscape(airportCode))

	var data any
	if err := c.fetchWithRetry(ctx, u, WeatherTypeNOTAMs, airportCode, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// FetchBriefing fetches all enabled weather products concurrently. It never
// fails as a whole; per-product failures are listed in FetchErrors.
func (c *Client) FetchBriefing(ctx context.Context, airportCode string) *Briefing {
	b := &Briefing{ICAO: airportCode, FetchErrors: []string{}}

	var mu sync.Mutex
	fail := func(kind string, err error) {
		mu.Lock()
		defer mu.Unlock()
		b.FetchErrors = append(b.FetchErrors, fmt.Sprintf("%s: %s", kind, err))
	}

	var g errgroup.Group
	if c.config.FetchMETAR {
		g.Go(func() error {
			m, err := c.FetchMETAR(ctx, airportCode)
			if err != nil {
				fail("METAR", err)
				return nil
			}
			b.METAR = m
			return nil
		})
	}
	if c.config.FetchTAF {
		g.Go(func() error {
			t, err := c.FetchTAF(ctx, airportCode)
			if err != nil {
				fail("TAF", err)
				return nil
			}
			b.TAF = t
			return nil
		})
	}
	if c.config.FetchNOTAMs {
		g.Go(func() error {
			n, err := c.FetchNOTAMs(ctx, airportCode)
			if err != nil {
				fail("NOTAMs", err)
				return nil
			}
			b.NOTAMs = n
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(b.FetchErrors)
	return b
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, u string, weatherType WeatherType, airportCode string, target any) error {
	start := time.Now()
	defer func() {
		c.metrics.WeatherFetchDuration.WithLabelValues(string(weatherType)).Observe(time.Since(start).Seconds())
	}()

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries
			backoffDuration := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.Info("Retrying weather data fetch",
				logger.String("type", string(weatherType)),
				logger.String("airport", airportCode),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoffDuration))

			timer := time.NewTimer(backoffDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.metrics.WeatherFetches.WithLabelValues(string(weatherType), "error").Inc()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := c.fetchOnce(ctx, u, target)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched weather data after retries",
					logger.String("type", string(weatherType)),
					logger.String("airport", airportCode),
					logger.Int("attempts_needed", attempt+1))
			}
			c.metrics.WeatherFetches.WithLabelValues(string(weatherType), "success").Inc()
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("Weather API request failed, may retry",
			logger.String("type", string(weatherType)),
			logger.String("airport", airportCode),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	c.metrics.WeatherFetches.WithLabelValues(string(weatherType), "error").Inc()
	c.logger.Error("All attempts to fetch weather data failed",
		logger.String("type", string(weatherType)),
		logger.String("airport", airportCode),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error building weather API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	// aviationweather.gov answers 204 when no station matched
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding weather data: %w", err)
	}
	return nil
}
