// Package config loads wolfie's configuration file, applies environment
// overrides and watches the file for changes.
package config

import (
	"fmt"
	"strings"
	"time"

	logx "wolfie/pkg/logx"
)

type Config struct {
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Titles      TitlesConfig      `json:"titles"`
	Battles     BattlesConfig     `json:"battles"`
	Guard       GuardConfig       `json:"guard"`
	Maintenance MaintenanceConfig `json:"maintenance"`
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

// StorageConfig selects the region backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/wolfie.db" }
type StorageConfig struct {
	Driver      string      `json:"driver"`
	Path        string      `json:"path"`
	BusyTimeout string      `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Redis       RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"` // never logged
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// TitlesConfig tunes the title queues. Durations are Go duration strings;
// empty means the built-in default.
type TitlesConfig struct {
	// Categories limits the enabled categories; empty enables all of them.
	Categories []string `json:"categories,omitempty"`
	Horizon    string   `json:"horizon,omitempty"`
	Throttle   string   `json:"throttle,omitempty"`
	Grace      string   `json:"grace,omitempty"`
}

type BattlesConfig struct {
	Capacity int `json:"capacity"`
}

// GuardConfig limits how fast one participant may issue commands.
// A zero rate disables the limiter.
type GuardConfig struct {
	RatePerSec float64 `json:"rate_per_sec"`
	Burst      int     `json:"burst"`
	IdleTTL    string  `json:"idle_ttl,omitempty"`
}

// MaintenanceConfig controls the background jobs run by `wolfie serve`.
//
// Schedules accept cron ("0 0 * * 1", "@daily"), a duration ("5m") or
// HH:MM. "off" disables a job.
type MaintenanceConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone,omitempty"`
	Timeout        string `json:"timeout,omitempty"`
	Flush          string `json:"flush,omitempty"`
	GridReset      string `json:"grid_reset,omitempty"`
	TitlePrune     string `json:"title_prune,omitempty"`
	PruneRetention string `json:"prune_retention,omitempty"`
}

// Defaults is the configuration used when no file exists.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: "./data"},
		Battles: BattlesConfig{Capacity: 30},
		Guard:   GuardConfig{RatePerSec: 2, Burst: 5, IdleTTL: "10m"},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Timezone: "UTC",
		},
	}
}

// Validate checks values that the strict decoder cannot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q (valid: trace, debug, info, warn, error)", cfg.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3", "redis", "memory", "mem":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Redis.DB < 0 {
		return fmt.Errorf("storage.redis.db: must be >= 0")
	}
	if cfg.Battles.Capacity < 0 {
		return fmt.Errorf("battles.capacity: must be >= 0")
	}
	if cfg.Guard.RatePerSec < 0 || cfg.Guard.Burst < 0 {
		return fmt.Errorf("guard: rate_per_sec and burst must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Maintenance.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("maintenance.timezone: %w", err)
		}
	}

	durations := []struct{ path, raw string }{
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"titles.horizon", cfg.Titles.Horizon},
		{"titles.throttle", cfg.Titles.Throttle},
		{"titles.grace", cfg.Titles.Grace},
		{"guard.idle_ttl", cfg.Guard.IdleTTL},
		{"maintenance.timeout", cfg.Maintenance.Timeout},
		{"maintenance.prune_retention", cfg.Maintenance.PruneRetention},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	return nil
}
