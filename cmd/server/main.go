package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/co-efb/internal/ai"
	"github.com/yegors/co-efb/internal/ai/gemini"
	"github.com/yegors/co-efb/internal/ai/openai"
	"github.com/yegors/co-efb/internal/airports"
	"github.com/yegors/co-efb/internal/alternates"
	"github.com/yegors/co-efb/internal/api"
	"github.com/yegors/co-efb/internal/briefing"
	"github.com/yegors/co-efb/internal/config"
	"github.com/yegors/co-efb/internal/notify"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/internal/storage/sqlite"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/internal/websocket"
	"github.com/yegors/co-efb/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log, *configPath); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *logger.Logger, configPath string) error {
	log.Info("Starting co-efb server",
		logger.String("version", Version),
		logger.String("config_path", configPath),
	)
	for _, key := range cfg.Undecoded {
		log.Warn("Unknown configuration key ignored", logger.String("key", key))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Storage
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	storage, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// WebSocket hub
	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, metrics, log)
	go wsServer.Run(ctx)

	// Weather
	wxConfig := cfg.Weather.ServiceConfig()
	weatherService := weather.NewService(
		wxConfig,
		weather.NewClient(wxConfig, metrics, log),
		weather.NewCache(wxConfig, metrics, log),
		clock,
		metrics,
		log,
	)
	weatherService.SetHistory(storage)
	weatherService.SetPublisher(wsServer)
	if err := weatherService.Start(); err != nil {
		return fmt.Errorf("start weather service: %w", err)
	}
	defer weatherService.Stop()

	// Airports (optional)
	var airportsDB api.AirportDatabase
	var db *airports.Database
	if cfg.Airports.AirportsDBPath != "" {
		db, err = airports.Load(cfg.Airports.AirportsDBPath, cfg.Airports.RunwaysDBPath, log)
		if err != nil {
			// Continue without airport features rather than failing
			log.Error("Failed to load airport database", logger.Error(err))
		} else {
			airportsDB = db
		}
	} else {
		log.Info("Airport database not configured")
	}

	// Alternates
	var lookup alternates.WeatherLookup = alternates.NewServiceLookup(weatherService)
	if cfg.Alternates.WeatherURL != "" {
		lookup = alternates.NewHTTPLookup(
			cfg.Alternates.WeatherURL,
			time.Duration(cfg.Alternates.RequestTimeoutSeconds)*time.Second,
			log,
		)
	}
	ranker := alternates.NewRanker(lookup, metrics, log)

	// Briefings
	briefings := briefing.NewService(weatherService, briefing.Config{
		Enabled:        cfg.AI.Enabled,
		Model:          cfg.AI.Model,
		Temperature:    cfg.AI.Temperature,
		MaxTokens:      cfg.AI.MaxTokens,
		TimeoutSeconds: cfg.AI.TimeoutSeconds,
		CacheMinutes:   cfg.AI.CacheMinutes,
	}, metrics, log)
	if db != nil {
		briefings.SetAirports(db)
	}
	if cfg.AI.Enabled {
		provider, err := newChatProvider(ctx, cfg.AI, log)
		if err != nil {
			// Briefings still work without a summary
			log.Error("Failed to create AI provider, summaries disabled", logger.Error(err))
		} else {
			briefings.SetProvider(provider)
			log.Info("AI briefing summaries enabled",
				logger.String("provider", cfg.AI.Provider),
				logger.String("model", cfg.AI.Model))
		}
	}

	// Dispatch notifications
	notifier := notify.NewService(
		storage,
		notify.NewDeduper(cfg.Dispatch.DedupSize, time.Duration(cfg.Dispatch.DedupTTLSeconds)*time.Second, clock),
		clock,
		metrics,
		log,
	)
	notifier.SetBroadcaster(wsServer)
	sendTimeout := time.Duration(cfg.Dispatch.RequestTimeoutSeconds) * time.Second
	if cfg.Dispatch.DiscordWebhookURL != "" {
		notifier.AddSender(notify.NewDiscordSender(cfg.Dispatch.DiscordWebhookURL, cfg.Dispatch.DiscordUsername, sendTimeout))
		log.Info("Discord delivery enabled")
	}
	if cfg.Dispatch.HoppieLogon != "" {
		endpoint := cfg.Dispatch.HoppieURL
		if endpoint == "" {
			endpoint = notify.DefaultHoppieURL
		}
		notifier.AddSender(notify.NewHoppieSender(endpoint, cfg.Dispatch.HoppieLogon, cfg.Dispatch.HoppieStation, sendTimeout))
		log.Info("Hoppie ACARS delivery enabled", logger.String("station", cfg.Dispatch.HoppieStation))
	}

	// Create API router
	handler := api.NewHandler(weatherService, ranker, airportsDB, briefings, notifier, storage, cfg, metrics, log)
	router := api.NewRouter(handler, wsServer, cfg, log).Routes()

	// --- Setup for multiple HTTP servers ---
	allPorts := append([]int{cfg.Server.Port}, cfg.Server.AdditionalPorts...)
	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	servers := make([]*http.Server, 0, len(allPorts))
	for _, port := range allPorts {
		servers = append(servers, &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler:      router, // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("Starting HTTP server", logger.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	// A signal or a failed listener shuts every server down
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var sg errgroup.Group
		for _, srv := range servers {
			sg.Go(func() error {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
					return err
				}
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
				return nil
			})
		}
		return sg.Wait()
	})

	err = g.Wait()
	log.Info("Server fully stopped")
	return err
}

// newChatProvider builds the configured language model client
func newChatProvider(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (ai.ChatProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api_key is not set")
	}
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(cfg.APIKey, log, cfg.BaseURL), nil
	default:
		return gemini.NewClient(ctx, cfg.APIKey, cfg.BaseURL, log)
	}
}
