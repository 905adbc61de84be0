package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout values accepted in the layout field.
const (
	LayoutStandard = "standard"
	LayoutWinCut   = "wincut"
	LayoutAuto     = "auto"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills in defaults for
// optional fields left empty.
func Validate(cfg *Config) error {
	if cfg.InputDir == "" {
		return errors.New("input_dir: required")
	}
	if cfg.ArchiveDir == "" {
		return errors.New("archive_dir: required")
	}
	if filepath.Clean(cfg.InputDir) == filepath.Clean(cfg.ArchiveDir) {
		return errors.New("archive_dir: must differ from input_dir")
	}
	if cfg.FilePattern != "" {
		if _, err := filepath.Match(cfg.FilePattern, ""); err != nil {
			return fmt.Errorf("file_pattern: %w", err)
		}
	}

	cfg.Layout = strings.ToLower(strings.TrimSpace(cfg.Layout))
	switch cfg.Layout {
	case "":
		cfg.Layout = DefaultLayout
	case LayoutStandard, LayoutWinCut, LayoutAuto:
	default:
		return fmt.Errorf("layout: invalid value %q (must be standard, wincut, or auto)", cfg.Layout)
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Cache.TTL < 0 {
		return errors.New("cache.ttl: must not be negative")
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}

	if cfg.Report.HighlightThicknessMM < 0 {
		return errors.New("report.highlight_thickness_mm: must be positive")
	}
	if cfg.Report.HighlightThicknessMM == 0 {
		cfg.Report.HighlightThicknessMM = DefaultHighlightThicknessMM
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateDatabase(db *DatabaseConfig) error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.Driver {
	case "":
		db.Driver = DefaultDriver
	case "sqlite", "postgres":
	case "postgresql":
		db.Driver = "postgres"
	default:
		return fmt.Errorf("driver: invalid value %q (must be sqlite or postgres)", db.Driver)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return errors.New("dsn: required")
	}
	if db.MaxOpenConns < 0 {
		return errors.New("max_open_conns: must not be negative")
	}
	if db.SlowThreshold <= 0 {
		db.SlowThreshold = DefaultSlowThreshold
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnFailures, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_failures, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnFailures
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}

	return s
}
