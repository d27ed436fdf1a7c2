package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data/efb.db", cfg.Storage.SQLitePath)
	assert.True(t, cfg.Weather.FetchMETAR)
	assert.Equal(t, "https://aviationweather.gov/api/data", cfg.Weather.APIBaseURL)
	assert.Equal(t, 5, cfg.Alternates.RequestTimeoutSeconds)
	assert.Equal(t, 600, cfg.Dispatch.DedupTTLSeconds)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.Undecoded)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[server]
port = 9090
additional_ports = [9091]
cors_allowed_origins = ["http://efb.local"]

[logging]
level = "debug"
format = "json"

[wx]
fetch_notams = false
cache_expiry_minutes = 3
watch_airports = ["rjtt", " RJAA", "RJTT"]

[alternates]
weather_url = "http://127.0.0.1:9090/api/weather"

[dispatch]
hoppie_logon = "secret"
hoppie_station = "efbops"

[ai]
enabled = true
provider = "OpenAI"
model = "gpt-4o-mini"

[bogus]
key = 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []int{9091}, cfg.Server.AdditionalPorts)
	assert.Equal(t, []string{"http://efb.local"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Weather.FetchNOTAMs)
	assert.True(t, cfg.Weather.FetchTAF, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Weather.CacheExpiryMinutes)
	assert.Equal(t, []string{"RJTT", "RJAA"}, cfg.Weather.WatchAirports)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "efbops", cfg.Dispatch.HoppieStation)
	assert.Contains(t, cfg.Undecoded, "bogus.key")

	wx := cfg.Weather.ServiceConfig()
	assert.Equal(t, 3, wx.CacheExpiryMinutes)
}

func TestLoad_EnvSecrets(t *testing.T) {
	t.Setenv("EFB_AI_API_KEY", "from-env")
	t.Setenv("EFB_HOPPIE_LOGON", "logon-env")
	path := writeConfig(t, t.TempDir(), `
[ai]
api_key = "from-file"

[dispatch]
hoppie_station = "OPS"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	assert.Equal(t, "logon-env", cfg.Dispatch.HoppieLogon)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config file not found")

	path := writeConfig(t, t.TempDir(), "[server\nport = 1")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to decode config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"duplicate port", func(c *Config) { c.Server.AdditionalPorts = []int{8080} }, "duplicate port"},
		{"missing static dir", func(c *Config) { c.Server.StaticFilesDir = "/nonexistent/www" }, "static files directory"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid logging level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging format"},
		{"zero refresh", func(c *Config) { c.Weather.RefreshIntervalMinutes = 0 }, "refresh_interval_minutes"},
		{"negative retries", func(c *Config) { c.Weather.MaxRetries = -1 }, "max_retries"},
		{"bad base url", func(c *Config) { c.Weather.APIBaseURL = "ftp://x" }, "api_base_url"},
		{"metar disabled", func(c *Config) { c.Weather.FetchMETAR = false }, "fetch_metar"},
		{"bad alternates url", func(c *Config) { c.Alternates.WeatherURL = "not a url" }, "alternates weather_url"},
		{"hoppie without station", func(c *Config) { c.Dispatch.HoppieLogon = "x" }, "hoppie_station"},
		{"bad discord url", func(c *Config) { c.Dispatch.DiscordWebhookURL = "discord" }, "discord_webhook_url"},
		{"unknown provider", func(c *Config) { c.AI.Enabled = true; c.AI.Provider = "llama" }, "invalid ai provider"},
		{"provider ignored when disabled", func(c *Config) { c.AI.Provider = "llama" }, ""},
		{"bad temperature", func(c *Config) { c.AI.Enabled = true; c.AI.Temperature = 3 }, "temperature"},
		{"empty sqlite", func(c *Config) { c.Storage.SQLitePath = "" }, "sqlite_path"},
		{"runways without airports", func(c *Config) { c.Airports.RunwaysDBPath = "runways.csv" }, "requires airports_db_path"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[server]\nport = 7070\n")

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)

	t.Chdir(dir)

	cfg, err = LoadWithFallback(filepath.Join(dir, "absent.toml"))
	require.NoError(t, err, "falls back to ./config.toml")
	assert.Equal(t, 7070, cfg.Server.Port)

	require.NoError(t, os.Remove(path))
	_, err = LoadWithFallback("")
	assert.ErrorContains(t, err, "expected locations")
}
