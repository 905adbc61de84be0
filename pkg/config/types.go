// Package config provides configuration loading and validation for cutlog.
package config

import "time"

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// InputDir is scanned for new log files.
	InputDir string `yaml:"input_dir"`

	// ArchiveDir receives files once they are committed.
	ArchiveDir string `yaml:"archive_dir"`

	// FilePattern restricts which file names in InputDir are candidates.
	FilePattern string `yaml:"file_pattern,omitempty"`

	// Layout is the line layout: standard, wincut or auto.
	Layout string `yaml:"layout"`

	Database DatabaseConfig  `yaml:"database"`
	Cache    CacheConfig     `yaml:"cache,omitempty"`
	Log      LogConfig       `yaml:"log,omitempty"`
	Metrics  MetricsConfig   `yaml:"metrics,omitempty"`
	Report   ReportConfig    `yaml:"report,omitempty"`
	Watch    WatchConfig     `yaml:"watch,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// DatabaseConfig selects and tunes the record store.
type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `yaml:"dsn"`

	MaxOpenConns  int           `yaml:"max_open_conns,omitempty"`
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
}

// CacheConfig controls the aggregate report cache.
// An empty RedisAddr selects the in-process cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	Prefix    string        `yaml:"prefix,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	// Mode is dev or prod.
	Mode  string `yaml:"mode,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// MetricsConfig controls run metrics output.
type MetricsConfig struct {
	// Textfile is where the Prometheus text exposition is written after each run.
	// Empty disables it.
	Textfile string `yaml:"textfile,omitempty"`
}

// ReportConfig tunes aggregate reports.
type ReportConfig struct {
	// HighlightThicknessMM is the board thickness called out in the period summary.
	HighlightThicknessMM float64 `yaml:"highlight_thickness_mm,omitempty"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnFailures fires only when a file failed to ingest (default).
	WebhookTriggerOnFailures WebhookTrigger = "on_failures"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for ingestion run reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_failures" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
