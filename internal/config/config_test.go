package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
http:
  addr: ":8080"
  base_url: "https://bot.example.com"
storage:
  driver: sqlite
  path: "./bot.db"
  busy_timeout: "2s"
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
tracker:
  enforce_limit: true
scheduler:
  enabled: true
  utc_offset_hours: 5
notify:
  rate_per_sec: 20
`

func TestParseFileYAML(t *testing.T) {
	cfg, err := ParseFile(writeFile(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.HTTP.Addr != ":8080" {
		t.Fatalf("decoded: %+v", cfg)
	}
	if !cfg.Tracker.EnforceLimit || cfg.Scheduler.UTCOffsetHours != 5 {
		t.Fatalf("decoded: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseFileJSON(t *testing.T) {
	cfg, err := ParseFile(writeFile(t, "config.json",
		`{"telegram":{"token":"123:abc"},"storage":{"driver":"memory"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseFileRejectsUnknownFields(t *testing.T) {
	_, err := ParseFile(writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  tokne_typo: "oops"
storage:
  driver: memory
`))
	if err == nil || !strings.Contains(err.Error(), "tokne_typo") {
		t.Fatalf("want unknown-field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"missing driver", func(c *Config) { c.Storage.Driver = "" }, "storage.driver"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "etcd" }, "unknown storage driver"},
		{"mongo needs uri", func(c *Config) { c.Storage = StorageConfig{Driver: "mongo", Database: "bot"} }, "storage.uri"},
		{"mongo needs database", func(c *Config) { c.Storage = StorageConfig{Driver: "mongo", URI: "mongodb://x"} }, "storage.database"},
		{"sqlite needs path", func(c *Config) { c.Storage = StorageConfig{Driver: "sqlite"} }, "storage.path"},
		{"bad duration", func(c *Config) { c.Telegram.PollTimeout = "soon" }, "poll_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "123:abc"},
				Storage:  StorageConfig{Driver: "sqlite", Path: "./bot.db"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative accepted")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("garbage accepted")
	}
}
