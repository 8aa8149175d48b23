// Package config loads application settings from the environment (and an
// optional .env file) and validates them on startup, so misconfiguration
// fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Store    StoreConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	// RequestTimeout applies to every route except imports, which use
	// IMPORT_TIMEOUT.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// DatabaseConfig holds the Postgres document store connection.
type DatabaseConfig struct {
	// URL also accepts DB_URL; see Load.
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	MaxFileSize   int64         `env:"IMPORT_MAX_FILE_SIZE" envDefault:"20971520"`
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" envDefault:"1"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" envDefault:"5s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" envDefault:"10m"`
	// Placeholder marks an unknown part code.
	Placeholder string `env:"RECONCILE_PLACEHOLDER" envDefault:"pendiente"`
}

// StoreConfig holds document store write settings.
type StoreConfig struct {
	// ChunkSize must stay below MaxBatchOps.
	ChunkSize     int    `env:"STORE_CHUNK_SIZE" envDefault:"400"`
	MaxBatchOps   int    `env:"STORE_MAX_BATCH_OPS" envDefault:"500"`
	NotifyChannel string `env:"STORE_NOTIFY_CHANNEL" envDefault:"inventory_items_changed"`
}

// HistoryConfig holds item history retention. RetentionDays 0 keeps
// history forever.
type HistoryConfig struct {
	RetentionDays int           `env:"HISTORY_RETENTION_DAYS" envDefault:"365"`
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" envDefault:"24h"`
}

// RateLimitConfig holds per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" envDefault:"false"`
	APIKeys        []string `env:"API_KEYS" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
