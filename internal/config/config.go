// Package config defines the top-level configuration for tradedesk and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADEDESK_* environment variables.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Feed     FeedConfig     `toml:"feed"`
	Identity IdentityConfig `toml:"identity"`
	Polling  PollingConfig  `toml:"polling"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BackendConfig points at the trading backend's REST API.
type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
	// RateLimitRPS paces outgoing requests; 0 disables pacing.
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// FeedConfig holds the real-time stream settings.
type FeedConfig struct {
	// URL of the WebSocket stream. Empty derives it from backend.base_url.
	URL          string   `toml:"url"`
	PingInterval duration `toml:"ping_interval"`
}

// IdentityConfig tells the gateway where its bearer token comes from.
type IdentityConfig struct {
	Token         string `toml:"token"`
	TokenFile     string `toml:"token_file"`
	TokenPassword string `toml:"token_password"`
}

// PollingConfig holds the dashboard session's refresh cadence.
type PollingConfig struct {
	Symbol             string   `toml:"symbol"`
	PricesInterval     duration `toml:"prices_interval"`
	NewsInterval       duration `toml:"news_interval"`
	AnalysisInterval   duration `toml:"analysis_interval"`
	SimulationInterval duration `toml:"simulation_interval"`
	// HistoryLimit caps the in-memory price history; 0 keeps everything.
	HistoryLimit int    `toml:"history_limit"`
	Locale       string `toml:"locale"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	KeyPrefix    string `toml:"key_prefix"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls how recorded history moves to cold storage.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
	// Prune deletes archived ticks from the database.
	Prune         bool     `toml:"prune"`
	BatchSize     int      `toml:"batch_size"`
	FlushInterval duration `toml:"flush_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPIBase   string   `toml:"telegram_api_base"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LogConfig adds a rotating file sink next to stdout.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:3001",
			Timeout:        duration{15 * time.Second},
			RateLimitRPS:   10,
			RateLimitBurst: 5,
		},
		Feed: FeedConfig{
			PingInterval: duration{15 * time.Second},
		},
		Polling: PollingConfig{
			Symbol:             "BTC",
			PricesInterval:     duration{60 * time.Second},
			NewsInterval:       duration{5 * time.Minute},
			AnalysisInterval:   duration{5 * time.Minute},
			SimulationInterval: duration{60 * time.Second},
			HistoryLimit:       10_000,
			Locale:             "en",
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "tradedesk",
			StreamMaxLen: 10_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradedesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradedesk-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			Interval:      duration{time.Hour},
			Retention:     duration{7 * 24 * time.Hour},
			Prune:         true,
			BatchSize:     200,
			FlushInterval: duration{2 * time.Second},
		},
		Notify: NotifyConfig{
			TelegramAPIBase: "https://api.telegram.org",
			Events:          []string{"order_completed", "order_cancelled", "feed_lost", "feed_restored"},
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mode:     "dashboard",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"dashboard": true,
	"record":    true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Records reports whether the mode persists feed events.
func (c *Config) Records() bool {
	m := strings.ToLower(c.Mode)
	return m == "record" || m == "full"
}

// Serves reports whether the mode runs the local API.
func (c *Config) Serves() bool {
	m := strings.ToLower(c.Mode)
	return (m == "dashboard" || m == "full") && c.Server.Enabled
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: dashboard, record, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backend
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("backend: base_url must be an absolute URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.Timeout.Duration <= 0 {
		errs = append(errs, "backend: timeout must be > 0")
	}
	if c.Backend.RateLimitRPS < 0 {
		errs = append(errs, "backend: rate_limit_rps must be >= 0")
	}

	// Feed
	if c.Feed.URL != "" {
		if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Sprintf("feed: url must use ws:// or wss://, got %q", c.Feed.URL))
		}
	}
	if c.Feed.PingInterval.Duration <= 0 {
		errs = append(errs, "feed: ping_interval must be > 0")
	}

	// Identity
	if c.Identity.TokenFile != "" && c.Identity.TokenPassword == "" {
		errs = append(errs, "identity: token_password is required when token_file is set")
	}

	// Polling
	if strings.TrimSpace(c.Polling.Symbol) == "" {
		errs = append(errs, "polling: symbol must not be empty")
	}
	for name, d := range map[string]duration{
		"prices_interval":     c.Polling.PricesInterval,
		"news_interval":       c.Polling.NewsInterval,
		"analysis_interval":   c.Polling.AnalysisInterval,
		"simulation_interval": c.Polling.SimulationInterval,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("polling: %s must be > 0", name))
		}
	}
	if c.Polling.HistoryLimit < 0 {
		errs = append(errs, "polling: history_limit must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	if c.Records() {
		errs = append(errs, c.validateStorage()...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateStorage() []string {
	var errs []string

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archive is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
	}
	return errs
}
