package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yegors/co-efb/internal/ai"
	"github.com/yegors/co-efb/internal/airports"
	"github.com/yegors/co-efb/internal/metar"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

// NOTAM text beyond this is cut from the prompt
const maxNOTAMPromptChars = 4000

const systemPrompt = `You are an airline dispatcher briefing a flight crew.
Summarize the airport weather and NOTAMs in at most three sentences of plain English.
Mention wind, visibility, ceiling and any hazard that affects the approach or departure.
Do not invent information that is not in the data.`

// Config controls the AI summary
type Config struct {
	Enabled        bool
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
	CacheMinutes   int
}

// WeatherSource supplies raw weather for an airport
type WeatherSource interface {
	Briefing(ctx context.Context, icao string) *weather.Briefing
}

// AirportSource resolves airport details
type AirportSource interface {
	Lookup(icao string) (*airports.Airport, error)
}

// Briefing is the crew-facing airport briefing
type Briefing struct {
	ICAO        string            `json:"icao"`
	Airport     *airports.Airport `json:"airport,omitempty"`
	RawMETAR    string            `json:"raw_metar,omitempty"`
	METAR       *metar.Report     `json:"metar,omitempty"`
	FlightCat   string            `json:"flight_category,omitempty"`
	TAF         string            `json:"taf,omitempty"`
	NOTAMs      any               `json:"notams,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
	FetchErrors []string          `json:"fetch_errors"`
}

// Service assembles briefings from weather, airport data and an optional
// language model summary
type Service struct {
	weather   WeatherSource
	airports  AirportSource
	provider  ai.ChatProvider
	config    Config
	summaries *expirable.LRU[string, string]
	metrics   *observability.Metrics
	logger    *logger.Logger
}

// NewService creates a briefing service
func NewService(wx WeatherSource, config Config, metrics *observability.Metrics, log *logger.Logger) *Service {
	if config.CacheMinutes <= 0 {
		config.CacheMinutes = 15
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 20
	}
	return &Service{
		weather:   wx,
		config:    config,
		summaries: expirable.NewLRU[string, string](256, nil, time.Duration(config.CacheMinutes)*time.Minute),
		metrics:   metrics,
		logger:    log.Named("briefing"),
	}
}

// SetAirports sets the airport database used to name the airport
func (s *Service) SetAirports(a AirportSource) {
	s.airports = a
}

// SetProvider sets the language model used for summaries
func (s *Service) SetProvider(p ai.ChatProvider) {
	s.provider = p
}

// Build returns the briefing for an airport. Missing products and a failed
// summary are listed in FetchErrors rather than failing the briefing.
func (s *Service) Build(ctx context.Context, icao string) *Briefing {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	wx := s.weather.Briefing(ctx, icao)

	b := &Briefing{
		ICAO:        icao,
		NOTAMs:      wx.NOTAMs,
		LastUpdated: wx.LastUpdated,
		FetchErrors: append([]string{}, wx.FetchErrors...),
	}

	if s.airports != nil {
		if a, err := s.airports.Lookup(icao); err == nil {
			b.Airport = a
		}
	}

	if wx.METAR != nil {
		b.RawMETAR = wx.METAR.RawOb
		b.FlightCat = wx.METAR.FltCat
		report, err := metar.Decode(wx.METAR.RawOb)
		if err != nil {
			s.metrics.METARDecodes.WithLabelValues("invalid").Inc()
			b.FetchErrors = append(b.FetchErrors, fmt.Sprintf("metar decode: %v", err))
		} else {
			s.metrics.METARDecodes.WithLabelValues("ok").Inc()
			b.METAR = report
		}
	}
	if wx.TAF != nil {
		b.TAF = wx.TAF.RawTAF
	}

	if s.config.Enabled && s.provider != nil && (b.RawMETAR != "" || b.TAF != "") {
		summary, err := s.summarize(ctx, b)
		if err != nil {
			s.metrics.BriefingSummary.WithLabelValues("error").Inc()
			s.logger.Warn("Briefing summary failed",
				logger.String("icao", icao),
				logger.Error(err))
			b.FetchErrors = append(b.FetchErrors, fmt.Sprintf("summary: %v", err))
		} else {
			s.metrics.BriefingSummary.WithLabelValues("success").Inc()
			b.Summary = summary
		}
	}

	return b
}

// summarize asks the provider for a short summary, reusing one for the same
// weather while it is cached
func (s *Service) summarize(ctx context.Context, b *Briefing) (string, error) {
	key := b.ICAO + "|" + b.RawMETAR + "|" + b.TAF
	if summary, ok := s.summaries.Get(key); ok {
		return summary, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.TimeoutSeconds)*time.Second)
	defer cancel()

	summary, err := s.provider.ChatCompletion(ctx, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: userPrompt(b)},
	}, ai.ChatConfig{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	s.summaries.Add(key, summary)
	return summary, nil
}

func userPrompt(b *Briefing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Airport: %s", b.ICAO)
	if b.Airport != nil && b.Airport.Name != "" {
		fmt.Fprintf(&sb, " (%s)", b.Airport.Name)
	}
	sb.WriteString("\n")
	if b.RawMETAR != "" {
		fmt.Fprintf(&sb, "METAR: %s\n", b.RawMETAR)
	}
	if b.METAR != nil {
		fmt.Fprintf(&sb, "Decoded: %s\n", b.METAR.PlainEnglish)
	}
	if b.TAF != "" {
		fmt.Fprintf(&sb, "TAF: %s\n", b.TAF)
	}
	if b.NOTAMs != nil {
		if data, err := json.Marshal(b.NOTAMs); err == nil {
			notams := string(data)
			if len(notams) > maxNOTAMPromptChars {
				notams = notams[:maxNOTAMPromptChars]
			}
			fmt.Fprintf(&sb, "NOTAMs: %s\n", notams)
		}
	}
	return sb.String()
}
