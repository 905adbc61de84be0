package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
input_dir: /data/incoming
archive_dir: /data/archive
layout: wincut
database:
  driver: postgres
  dsn: "postgres://cutlog@db/cutlog"
  max_open_conns: 4
cache:
  redis_addr: "localhost:6379"
  ttl: 1m
report:
  highlight_thickness_mm: 19
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InputDir != "/data/incoming" || cfg.ArchiveDir != "/data/archive" {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.ArchiveDir)
	}
	if cfg.Layout != LayoutWinCut {
		t.Errorf("Layout = %q, want wincut", cfg.Layout)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.MaxOpenConns != 4 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.SlowThreshold != DefaultSlowThreshold {
		t.Errorf("SlowThreshold = %v, want default", cfg.Database.SlowThreshold)
	}
	if cfg.Cache.TTL != time.Minute || cfg.Cache.Prefix != DefaultCachePrefix {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Report.HighlightThicknessMM != 19 {
		t.Errorf("HighlightThicknessMM = %v, want 19", cfg.Report.HighlightThicknessMM)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "input_dir: in\narchive_dir: out\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Layout != DefaultLayout {
		t.Errorf("Layout = %q, want %q", cfg.Layout, DefaultLayout)
	}
	if cfg.Database.Driver != DefaultDriver || cfg.Database.DSN != DefaultDSN {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, DefaultCacheTTL)
	}
	if cfg.Report.HighlightThicknessMM != DefaultHighlightThicknessMM {
		t.Errorf("HighlightThicknessMM = %v", cfg.Report.HighlightThicknessMM)
	}
	if cfg.Watch.Debounce != DefaultDebounce {
		t.Errorf("Watch.Debounce = %v", cfg.Watch.Debounce)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvLegacyDSN, "postgres://legacy@db/cutlog")
	t.Setenv(EnvRedisAddr, "cache:6379")
	t.Setenv(EnvLogLevel, "debug")

	path := writeTempFile(t, "config.yaml", "input_dir: in\narchive_dir: out\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://legacy@db/cutlog" {
		t.Errorf("Database = %+v, want legacy postgres override", cfg.Database)
	}
	if cfg.Cache.RedisAddr != "cache:6379" {
		t.Errorf("Cache.RedisAddr = %q", cfg.Cache.RedisAddr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}

	// The explicit variable wins over the legacy alias.
	t.Setenv(EnvDatabaseDSN, "postgres://new@db/cutlog")
	cfg, err = Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://new@db/cutlog" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", "input_dir: [unterminated")
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"missing input_dir", func(c *Config) { c.InputDir = "" }, "input_dir"},
		{"missing archive_dir", func(c *Config) { c.ArchiveDir = "" }, "archive_dir"},
		{"same dirs", func(c *Config) { c.ArchiveDir = c.InputDir + "/" }, "must differ"},
		{"bad layout", func(c *Config) { c.Layout = "csv" }, "layout"},
		{"bad pattern", func(c *Config) { c.FilePattern = "[" }, "file_pattern"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = " " }, "dsn"},
		{"negative conns", func(c *Config) { c.Database.MaxOpenConns = -1 }, "max_open_conns"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
		{"negative highlight", func(c *Config) { c.Report.HighlightThicknessMM = -1 }, "highlight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_NormalizesDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "PostgreSQL"
	cfg.Layout = " Auto "
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Layout != LayoutAuto {
		t.Errorf("Layout = %q, want auto", cfg.Layout)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Layout != DefaultLayout {
		t.Errorf("Layout = %q", cfg.Layout)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if len(cfg.Webhooks) != 0 {
		t.Errorf("Webhooks = %v, want none", cfg.Webhooks)
	}
}

// ============================================================================
// Webhook Validation Tests
// ============================================================================

func TestValidate_Webhook_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{
		Name:    "test-webhook",
		URL:     "https://example.com/webhook",
		Trigger: WebhookTriggerAlways,
		Timeout: 10 * time.Second,
	}}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Webhook_Invalid(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"missing url", WebhookConfig{Name: "no-url"}},
		{"ftp scheme", WebhookConfig{URL: "ftp://example.com/webhook"}},
		{"no host", WebhookConfig{URL: "http:///path"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "on_issues"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Webhooks = []WebhookConfig{tt.wh}
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_Webhook_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "http://localhost:8080/webhook"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerOnFailures {
		t.Errorf("Default trigger = %v, want %v", cfg.Webhooks[0].Trigger, WebhookTriggerOnFailures)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("Default timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "secret-value")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_WEBHOOK_TOKEN}", "secret-value"},
		{"$TEST_WEBHOOK_TOKEN", "secret-value"},
		{"plain-value", "plain-value"},
		{"", ""},
		{"${NONEXISTENT_VAR}", ""},
	}

	for _, tt := range tests {
		got := expandEnvVar(tt.input)
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_WithWebhooks(t *testing.T) {
	t.Setenv("CUTLOG_TEST_TOKEN", "tok")
	content := `
input_dir: in
archive_dir: out
webhooks:
  - name: ops
    url: "https://example.com/webhook"
    token: "${CUTLOG_TEST_TOKEN}"
    trigger: always
    timeout: 30s
  - url: "https://backup.example.com/webhook"
`
	path := writeTempFile(t, "config-with-webhooks.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Webhooks) != 2 {
		t.Fatalf("Webhooks = %d, want 2", len(cfg.Webhooks))
	}
	if cfg.Webhooks[0].Token != "tok" {
		t.Errorf("Webhook[0].Token = %q, want tok", cfg.Webhooks[0].Token)
	}
	if cfg.Webhooks[0].Timeout != 30*time.Second {
		t.Errorf("Webhook[0].Timeout = %v, want 30s", cfg.Webhooks[0].Timeout)
	}
	if cfg.Webhooks[1].Trigger != WebhookTriggerOnFailures {
		t.Errorf("Webhook[1].Trigger = %v, want on_failures", cfg.Webhooks[1].Trigger)
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.InputDir = "/data/in"
	cfg.ArchiveDir = "/data/archive"
	return cfg
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
