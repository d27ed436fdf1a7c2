package alternates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/co-efb/internal/geo"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

// HTTPLookup asks a weather endpoint for conditions, one GET per ranking:
// GET <url>?icaos=A,B,C
type HTTPLookup struct {
	url        string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPLookup creates a lookup against the given endpoint
func NewHTTPLookup(endpoint string, timeout time.Duration, logger *logger.Logger) *HTTPLookup {
	return &HTTPLookup{
		url:        endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("alternates-wx"),
	}
}

// Lookup implements WeatherLookup
func (l *HTTPLookup) Lookup(ctx context.Context, icaos []string) (map[string]Conditions, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return nil, fmt.Errorf("parse weather url: %w", err)
	}
	q := u.Query()
	q.Set("icaos", strings.Join(icaos, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather request: unexpected status code: %d", resp.StatusCode)
	}

	var doc weather.CollaboratorDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode weather document: %w", err)
	}

	wx := FromDocument(&doc)
	l.logger.Debug("Weather lookup completed",
		logger.Int("requested", len(icaos)),
		logger.Int("returned", len(wx)))
	return wx, nil
}

// CollaboratorSource builds the weather document in-process
type CollaboratorSource interface {
	Collaborator(ctx context.Context, icaos []string) (*weather.CollaboratorDocument, error)
}

// ServiceLookup reads conditions straight from the weather service when no
// external endpoint is configured.
type ServiceLookup struct {
	source CollaboratorSource
}

// NewServiceLookup creates an in-process lookup
func NewServiceLookup(source CollaboratorSource) *ServiceLookup {
	return &ServiceLookup{source: source}
}

// Lookup implements WeatherLookup
func (l *ServiceLookup) Lookup(ctx context.Context, icaos []string) (map[string]Conditions, error) {
	doc, err := l.source.Collaborator(ctx, icaos)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc), nil
}

// FromDocument converts a station document into scoring conditions keyed by
// upper-case ICAO. Statute-mile visibility is converted to metres; plain
// visibility is taken as metres already. The first sky condition, or the
// ceiling field, gives the ceiling in feet. Missing values stay neutral.
func FromDocument(doc *weather.CollaboratorDocument) map[string]Conditions {
	if doc == nil {
		return nil
	}

	out := make(map[string]Conditions, len(doc.METAR.Data.METAR))
	for _, s := range doc.METAR.Data.METAR {
		icao := strings.ToUpper(strings.TrimSpace(s.ICAO()))
		if icao == "" {
			continue
		}

		cond := NeutralConditions()
		switch {
		case s.VisibilityStatuteMi != nil:
			cond.Vis = float64(*s.VisibilityStatuteMi) * geo.MetersPerSM
		case s.Visibility != nil:
			cond.Vis = float64(*s.Visibility)
		}
		switch {
		case len(s.SkyCondition) > 0 && s.SkyCondition[0].CloudBaseFtAGL != nil:
			cond.Ceiling = float64(*s.SkyCondition[0].CloudBaseFtAGL)
		case s.Ceiling != nil:
			cond.Ceiling = float64(*s.Ceiling)
		}
		out[icao] = cond
	}
	return out
}
