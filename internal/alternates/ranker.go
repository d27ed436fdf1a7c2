package alternates

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/yegors/co-efb/internal/geo"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// ErrInvalidPayload is returned when origin or destination is missing or the
// candidate list is absent.
var ErrInvalidPayload = errors.New("invalid payload")

// Scoring constants
const (
	MaxRanked = 6

	VisibilityPenalty = 200.0
	CeilingPenalty    = 200.0
	RunwayPenalty     = 500.0

	// Neutral weather assumed when none is reported
	DefaultVisibilityM = 99999.0
	DefaultCeilingFt   = 10000.0
)

// Point is an airport position
type Point struct {
	ICAO string  `json:"icao"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Candidate is a possible diversion airport
type Candidate struct {
	ICAO        string   `json:"icao"`
	Name        string   `json:"name,omitempty"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	LongestRwyM *float64 `json:"longestRwyM,omitempty"`
}

func (c Candidate) runwayM() float64 {
	if c.LongestRwyM == nil {
		return 0
	}
	return *c.LongestRwyM
}

// Minima are the operator's limits for a usable alternate
type Minima struct {
	RwyMetersMin float64 `json:"rwyMetersMin"`
	VisMetersMin float64 `json:"visMetersMin"`
	CeilingFtMin float64 `json:"ceilingFtMin"`
}

// Conditions is the weather used for scoring: visibility in metres and
// ceiling in feet.
type Conditions struct {
	Vis     float64 `json:"vis"`
	Ceiling float64 `json:"ceiling"`
}

// NeutralConditions is what a candidate without reported weather is scored with
func NeutralConditions() Conditions {
	return Conditions{Vis: DefaultVisibilityM, Ceiling: DefaultCeilingFt}
}

// Request is the body of POST /api/alternates
type Request struct {
	Origin      *Point      `json:"origin"`
	Destination *Point      `json:"destination"`
	Candidates  []Candidate `json:"candidates"`
	Minima      Minima      `json:"minima"`
}

// Validate checks the fields ranking cannot do without
func (r Request) Validate() error {
	if r.Origin == nil || r.Destination == nil || r.Candidates == nil {
		return ErrInvalidPayload
	}
	return nil
}

// Ranked is a scored candidate
type Ranked struct {
	Candidate
	Score  float64    `json:"score"`
	Wx     Conditions `json:"wx"`
	DistNM float64    `json:"distNM"`
}

// Result is the ranking response
type Result struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Ranked      []Ranked `json:"ranked"`
}

// WeatherLookup fetches conditions for many airports in one call. Airports
// missing from the result are scored with neutral weather.
type WeatherLookup interface {
	Lookup(ctx context.Context, icaos []string) (map[string]Conditions, error)
}

// Ranker scores alternates by distance from the route midpoint plus
// weather and runway penalties.
type Ranker struct {
	weather WeatherLookup
	metrics *observability.Metrics
	logger  *logger.Logger
}

// NewRanker creates a ranker. A nil lookup scores every candidate with
// neutral weather.
func NewRanker(weather WeatherLookup, metrics *observability.Metrics, logger *logger.Logger) *Ranker {
	return &Ranker{
		weather: weather,
		metrics: metrics,
		logger:  logger.Named("alternates"),
	}
}

// Rank filters candidates by runway length, scores them and returns at most
// MaxRanked in ascending score order. A failed weather lookup does not fail
// the ranking.
func (r *Ranker) Rank(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	midLat, midLon := geo.Midpoint(req.Origin.Lat, req.Origin.Lon, req.Destination.Lat, req.Destination.Lon)

	eligible := make([]Candidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if c.runwayM() >= req.Minima.RwyMetersMin {
			eligible = append(eligible, c)
		}
	}

	wx := r.lookup(ctx, eligible)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]Ranked, 0, len(eligible))
	for _, c := range eligible {
		cond, ok := wx[strings.ToUpper(c.ICAO)]
		if !ok {
			cond = NeutralConditions()
		}
		dist := geo.HaversineNM(midLat, midLon, c.Lat, c.Lon)
		ranked = append(ranked, Ranked{
			Candidate: c,
			Score:     dist + penalties(c, cond, req.Minima),
			Wx:        cond,
			DistNM:    dist,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	if len(ranked) > MaxRanked {
		ranked = ranked[:MaxRanked]
	}

	r.logger.Debug("Ranked alternates",
		logger.String("origin", req.Origin.ICAO),
		logger.String("destination", req.Destination.ICAO),
		logger.Int("candidates", len(req.Candidates)),
		logger.Int("eligible", len(eligible)),
		logger.Int("returned", len(ranked)))

	return &Result{
		Origin:      req.Origin.ICAO,
		Destination: req.Destination.ICAO,
		Ranked:      ranked,
	}, nil
}

// penalties adds the weather and runway penalties for one candidate. The
// runway term cannot fire after filtering but is kept in the score.
func penalties(c Candidate, wx Conditions, m Minima) float64 {
	p := 0.0
	if wx.Vis < m.VisMetersMin {
		p += VisibilityPenalty
	}
	if wx.Ceiling < m.CeilingFtMin {
		p += CeilingPenalty
	}
	if m.RwyMetersMin > c.runwayM() {
		p += RunwayPenalty
	}
	return p
}

// lookup fetches weather for the candidates, degrading to an empty result
func (r *Ranker) lookup(ctx context.Context, candidates []Candidate) map[string]Conditions {
	if r.weather == nil || len(candidates) == 0 {
		return nil
	}

	icaos := make([]string, 0, len(candidates))
	for _, c := range candidates {
		icaos = append(icaos, c.ICAO)
	}

	wx, err := r.weather.Lookup(ctx, icaos)
	if err != nil {
		r.metrics.AlternatesWxLookup.WithLabelValues("degraded").Inc()
		r.logger.Warn("Weather lookup failed, ranking with neutral weather",
			logger.Int("airports", len(icaos)),
			logger.Error(err))
		return nil
	}
	r.metrics.AlternatesWxLookup.WithLabelValues("ok").Inc()
	return wx
}
