package config

import (
	"errors"
	"strings"
)

// Config is the full application configuration. It is decoded strictly
// (unknown fields are rejected) from a JSON or YAML file.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	HTTP      HTTPConfig      `json:"http"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Tracker   TrackerConfig   `json:"tracker"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type HTTPConfig struct {
	Addr string `json:"addr,omitempty"` // default ":3000"
	// BaseURL is the public URL of this service. It is only used to decide
	// whether broadcasts may carry an export download link; empty or
	// localhost disables the link silently.
	BaseURL string `json:"base_url,omitempty"`
}

// StorageConfig selects the document-store driver.
//
// Driver values:
//   - "mongo":  MongoDB (URI + Database required)
//   - "sqlite": embedded SQLite database file (Path required)
type StorageConfig struct {
	Driver   string `json:"driver"`
	URI      string `json:"uri,omitempty"`
	Database string `json:"database,omitempty"`
	Path     string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TrackerConfig controls the counting policy.
//
// EnforceLimit selects between the two historical behaviors: when true a
// video event that would exceed the resolved daily limit is rejected; when
// false (default) the limit is resolved for reporting only and every
// qualifying event is counted.
type TrackerConfig struct {
	EnforceLimit bool `json:"enforce_limit"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// UTCOffsetHours shifts all date/time matching (daily counters,
	// reminder times, broadcast dedup) relative to UTC.
	UTCOffsetHours int `json:"utc_offset_hours"`
}

type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"` // default 25
}

// Validate checks required fields. Component-level defaults are applied by
// the components themselves (pass-through zero values are meaningful).
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "mongo", "mongodb":
		if strings.TrimSpace(c.Storage.URI) == "" {
			return errors.New("storage.uri is required for the mongo driver")
		}
		if strings.TrimSpace(c.Storage.Database) == "" {
			return errors.New("storage.database is required for the mongo driver")
		}
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case "memory":
		// Nothing to validate, data lives for the process lifetime.
	case "":
		return errors.New("storage.driver is required")
	default:
		return errors.New("unknown storage driver: " + c.Storage.Driver)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}
