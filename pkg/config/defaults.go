package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultLayout               = "standard"
	DefaultDriver               = "sqlite"
	DefaultDSN                  = "cutlog.db"
	DefaultCachePrefix          = "cutlog:"
	DefaultCacheTTL             = 5 * time.Minute
	DefaultSlowThreshold        = 200 * time.Millisecond
	DefaultHighlightThicknessMM = 18
	DefaultDebounce             = 2 * time.Second
	DefaultWebhookTimeout       = 10 * time.Second
)

// Environment variable names.
const (
	EnvDatabaseDSN = "CUTLOG_DATABASE_DSN"
	EnvLegacyDSN   = "PG_CONN"
	EnvRedisAddr   = "CUTLOG_REDIS_ADDR"
	EnvLogLevel    = "CUTLOG_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Layout: DefaultLayout,
		Database: DatabaseConfig{
			Driver:        DefaultDriver,
			DSN:           DefaultDSN,
			SlowThreshold: DefaultSlowThreshold,
		},
		Cache: CacheConfig{
			Prefix: DefaultCachePrefix,
			TTL:    DefaultCacheTTL,
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
		Report: ReportConfig{
			HighlightThicknessMM: DefaultHighlightThicknessMM,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	// PG_CONN is the name older deployments used for the postgres connection string.
	if dsn := os.Getenv(EnvLegacyDSN); dsn != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = dsn
	}
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		c.Database.DSN = dsn
	}
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}
