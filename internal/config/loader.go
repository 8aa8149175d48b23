package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result. Files named in dotenv are loaded first when they
// exist; variables already set in the environment win.
func Load(dotenv ...string) (*Config, error) {
	for _, f := range dotenv {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config load %s: %w", f, err)
		}
	}
	return LoadFrom(environ())
}

// LoadFrom is Load over an explicit variable set.
func LoadFrom(vars map[string]string) (*Config, error) {
	if vars["DATABASE_URL"] == "" && vars["DB_URL"] != "" {
		merged := make(map[string]string, len(vars)+1)
		for k, v := range vars {
			merged[k] = v
		}
		merged["DATABASE_URL"] = vars["DB_URL"]
		vars = merged
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.Security.TrustedProxies = cleanList(cfg.Security.TrustedProxies)
	cfg.Security.APIKeys = cleanList(cfg.Security.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error. Use it only in main().
func MustLoad(dotenv ...string) *Config {
	cfg, err := Load(dotenv...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the configuration is usable and reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Import.Placeholder) == "" {
		errs = append(errs, "RECONCILE_PLACEHOLDER must not be blank")
	}

	if c.Store.MaxBatchOps <= 0 {
		errs = append(errs, "STORE_MAX_BATCH_OPS must be positive")
	}
	if c.Store.ChunkSize <= 0 {
		errs = append(errs, "STORE_CHUNK_SIZE must be positive")
	} else if c.Store.ChunkSize >= c.Store.MaxBatchOps {
		errs = append(errs, fmt.Sprintf("STORE_CHUNK_SIZE (%d) must be below STORE_MAX_BATCH_OPS (%d)",
			c.Store.ChunkSize, c.Store.MaxBatchOps))
	}
	if c.Store.NotifyChannel == "" {
		errs = append(errs, "STORE_NOTIFY_CHANNEL must not be empty")
	}

	if c.History.RetentionDays < 0 {
		errs = append(errs, "HISTORY_RETENTION_DAYS must be non-negative")
	}
	if c.History.RetentionDays > 0 && c.History.PruneInterval <= 0 {
		errs = append(errs, "HISTORY_PRUNE_INTERVAL must be positive when retention is enabled")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a representation safe for logs. The database URL and API
// keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, Placeholder: %q}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Timeout, c.Import.Placeholder)
	fmt.Fprintf(&b, "Store: {ChunkSize: %d, MaxBatchOps: %d, NotifyChannel: %q}, ",
		c.Store.ChunkSize, c.Store.MaxBatchOps, c.Store.NotifyChannel)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
