package app

import (
	"time"

	"wolfie/internal/config"
	"wolfie/internal/guard"
	"wolfie/internal/maintenance"
	"wolfie/internal/storage"
	logx "wolfie/pkg/logx"
)

// Config is validated before these run; bad durations fall back to defaults.

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: config.DurationOr(sc.BusyTimeout, time.Second),
		Redis: storage.RedisConfig{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		},
	}
}

func guardConfig(cfg *config.Config) guard.Config {
	return guard.Config{
		RatePerSec: cfg.Guard.RatePerSec,
		Burst:      cfg.Guard.Burst,
		IdleTTL:    config.DurationOr(cfg.Guard.IdleTTL, 10*time.Minute),
	}
}

func maintenanceConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		Enabled:  cfg.Maintenance.Enabled,
		Timezone: cfg.Maintenance.Timezone,
		Timeout:  config.DurationOr(cfg.Maintenance.Timeout, 30*time.Second),
	}
}

func jobsConfig(cfg *config.Config) maintenance.JobsConfig {
	return maintenance.JobsConfig{
		Flush:          cfg.Maintenance.Flush,
		GridReset:      cfg.Maintenance.GridReset,
		TitlePrune:     cfg.Maintenance.TitlePrune,
		PruneRetention: config.DurationOr(cfg.Maintenance.PruneRetention, maintenance.DefaultPruneRetention),
	}
}
