package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yegors/co-efb/internal/weather"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
	Weather    WeatherConfig    `toml:"wx"`         // Weather data fetching and caching settings
	Alternates AlternatesConfig `toml:"alternates"` // Alternate airport ranking settings
	Airports   AirportsConfig   `toml:"airports"`   // OurAirports database files
	Dispatch   DispatchConfig   `toml:"dispatch"`   // Crew notification channels
	AI         AIConfig         `toml:"ai"`         // Language model briefing summaries
	Metrics    MetricsConfig    `toml:"metrics"`    // Prometheus endpoint

	// Keys present in the file that no section understands
	Undecoded []string `toml:"-"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the EFB web client from (empty = API only)
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level      string `toml:"level"`        // debug, info, warn, error
	Format     string `toml:"format"`       // console or json
	FilePath   string `toml:"file_path"`    // Optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// StorageConfig contains data persistence settings
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file
}

// WeatherConfig contains weather data fetching and caching configuration.
// It mirrors weather.Config field for field.
type WeatherConfig struct {
	APIBaseURL             string   `toml:"api_base_url"`             // Base URL for the aviationweather.gov data API
	RequestTimeoutSeconds  int      `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int      `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	FetchMETAR             bool     `toml:"fetch_metar"`              // Whether to fetch METAR data
	FetchTAF               bool     `toml:"fetch_taf"`                // Whether to fetch TAF data
	FetchNOTAMs            bool     `toml:"fetch_notams"`             // Whether to fetch NOTAM data
	NOTAMsBaseURL          string   `toml:"notams_api_base_url"`      // Base URL for the NOTAM API
	CacheExpiryMinutes     int      `toml:"cache_expiry_minutes"`     // How long cached weather stays fresh
	CacheSize              int      `toml:"cache_size"`               // Maximum airports held in the cache
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes"` // Watcher refresh interval in minutes
	WatchAirports          []string `toml:"watch_airports"`           // Airports whose METARs are pushed to clients
}

// ServiceConfig converts the section to the weather package configuration
func (w WeatherConfig) ServiceConfig() weather.Config {
	return weather.Config(w)
}

// AlternatesConfig contains alternate ranking settings
type AlternatesConfig struct {
	WeatherURL            string `toml:"weather_url"`             // External weather endpoint (empty = use this server's weather service)
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Timeout for the weather lookup
	NearbyRadiusNM        int    `toml:"nearby_radius_nm"`        // Default search radius for nearby airports
}

// AirportsConfig points at the OurAirports CSV files
type AirportsConfig struct {
	AirportsDBPath string `toml:"airports_db_path"` // Path to airports.csv (empty = airport features disabled)
	RunwaysDBPath  string `toml:"runways_db_path"`  // Path to runways.csv
}

// DispatchConfig contains crew notification settings
type DispatchConfig struct {
	DiscordWebhookURL     string `toml:"discord_webhook_url"`     // Discord webhook (empty = disabled)
	DiscordUsername       string `toml:"discord_username"`        // Name shown on webhook posts
	HoppieURL             string `toml:"hoppie_url"`              // Hoppie ACARS connect endpoint
	HoppieLogon           string `toml:"hoppie_logon"`            // Hoppie logon code (empty = disabled)
	HoppieStation         string `toml:"hoppie_station"`          // Sending station callsign
	DedupTTLSeconds       int    `toml:"dedup_ttl_seconds"`       // Window in which repeated notifications are dropped
	DedupSize             int    `toml:"dedup_size"`              // Maximum remembered notifications
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Timeout for each outbound delivery
}

// AIConfig contains briefing summary settings
type AIConfig struct {
	Enabled        bool    `toml:"enabled"`         // Enable AI summaries on briefings
	Provider       string  `toml:"provider"`        // "gemini" or "openai"
	APIKey         string  `toml:"api_key"`         // Provider API key (EFB_AI_API_KEY overrides)
	BaseURL        string  `toml:"base_url"`        // Optional endpoint override
	Model          string  `toml:"model"`           // Model name
	Temperature    float64 `toml:"temperature"`     // Sampling temperature
	MaxTokens      int     `toml:"max_tokens"`      // Maximum tokens in a summary
	TimeoutSeconds int     `toml:"timeout_seconds"` // Timeout for one summary request
	CacheMinutes   int     `toml:"cache_minutes"`   // How long a summary is reused for unchanged weather
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"` // Expose metrics
	Path    string `toml:"path"`    // HTTP path for the metrics endpoint
}

// Default returns the configuration used for any key the file leaves out
func Default() *Config {
	wx := weather.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   30,
			IdleTimeoutSecs:    60,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			MaxSizeMB: 64,
		},
		Storage: StorageConfig{
			SQLitePath: "data/efb.db",
		},
		Weather: WeatherConfig(wx),
		Alternates: AlternatesConfig{
			RequestTimeoutSeconds: 5,
			NearbyRadiusNM:        150,
		},
		Dispatch: DispatchConfig{
			DiscordUsername:       "EFB Dispatch",
			DedupTTLSeconds:       600,
			DedupSize:             1024,
			RequestTimeoutSeconds: 10,
		},
		AI: AIConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash",
			Temperature:    0.2,
			MaxTokens:      256,
			TimeoutSeconds: 20,
			CacheMinutes:   15,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	config := Default()
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	for _, key := range md.Undecoded() {
		config.Undecoded = append(config.Undecoded, key.String())
	}

	config.applyEnv()
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyEnv lets secrets live outside the config file
func (c *Config) applyEnv() {
	if v := os.Getenv("EFB_AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("EFB_DISCORD_WEBHOOK_URL"); v != "" {
		c.Dispatch.DiscordWebhookURL = v
	}
	if v := os.Getenv("EFB_HOPPIE_LOGON"); v != "" {
		c.Dispatch.HoppieLogon = v
	}
}

// ApplyDefaults fills values that were set to zero but have no meaningful zero
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Weather.CacheSize <= 0 {
		c.Weather.CacheSize = d.Weather.CacheSize
	}
	if c.Alternates.RequestTimeoutSeconds <= 0 {
		c.Alternates.RequestTimeoutSeconds = d.Alternates.RequestTimeoutSeconds
	}
	if c.Alternates.NearbyRadiusNM <= 0 {
		c.Alternates.NearbyRadiusNM = d.Alternates.NearbyRadiusNM
	}
	if c.Dispatch.DedupTTLSeconds <= 0 {
		c.Dispatch.DedupTTLSeconds = d.Dispatch.DedupTTLSeconds
	}
	if c.Dispatch.DedupSize <= 0 {
		c.Dispatch.DedupSize = d.Dispatch.DedupSize
	}
	if c.Dispatch.RequestTimeoutSeconds <= 0 {
		c.Dispatch.RequestTimeoutSeconds = d.Dispatch.RequestTimeoutSeconds
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = d.AI.TimeoutSeconds
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.Weather.WatchAirports = weather.NormalizeICAOs(c.Weather.WatchAirports)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validators := []func() error{
		c.ValidateServer,
		c.ValidateLogging,
		c.ValidateWeather,
		c.ValidateAlternates,
		c.ValidateDispatch,
		c.ValidateAI,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}

	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage sqlite_path cannot be empty")
	}
	if c.Airports.RunwaysDBPath != "" && c.Airports.AirportsDBPath == "" {
		return fmt.Errorf("airports runways_db_path requires airports_db_path")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %s", c.Metrics.Path)
	}

	return nil
}

// ValidateServer validates the server section
func (c *Config) ValidateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}

	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	return nil
}

// ValidateLogging validates the logging section
func (c *Config) ValidateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if c.Weather.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}
	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}
	if c.Weather.CacheExpiryMinutes <= 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", c.Weather.CacheExpiryMinutes)
	}
	if err := validateURL("weather api_base_url", c.Weather.APIBaseURL); err != nil {
		return err
	}
	if c.Weather.FetchNOTAMs {
		if err := validateURL("weather notams_api_base_url", c.Weather.NOTAMsBaseURL); err != nil {
			return err
		}
	}
	// METARs back the decoder endpoints, alternates and the watcher
	if !c.Weather.FetchMETAR {
		return fmt.Errorf("weather fetch_metar must be enabled")
	}
	return nil
}

// ValidateAlternates validates the alternates section
func (c *Config) ValidateAlternates() error {
	if c.Alternates.WeatherURL != "" {
		return validateURL("alternates weather_url", c.Alternates.WeatherURL)
	}
	return nil
}

// ValidateDispatch validates the dispatch section
func (c *Config) ValidateDispatch() error {
	if c.Dispatch.DiscordWebhookURL != "" {
		if err := validateURL("dispatch discord_webhook_url", c.Dispatch.DiscordWebhookURL); err != nil {
			return err
		}
	}
	if c.Dispatch.HoppieLogon != "" && c.Dispatch.HoppieStation == "" {
		return fmt.Errorf("dispatch hoppie_station is required when hoppie_logon is set")
	}
	if c.Dispatch.HoppieURL != "" {
		if err := validateURL("dispatch hoppie_url", c.Dispatch.HoppieURL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAI validates the AI section. A missing key only disables summaries.
func (c *Config) ValidateAI() error {
	if !c.AI.Enabled {
		return nil
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid ai provider: %s (must be gemini or openai)", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai model is required when ai is enabled")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai temperature must be between 0 and 2: %f", c.AI.Temperature)
	}
	if c.AI.BaseURL != "" {
		return validateURL("ai base_url", c.AI.BaseURL)
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s is not a valid http(s) URL: %s", name, raw)
	}
	return nil
}
