package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the settings that may come from the environment, mostly
// so secrets stay out of the config file. Empty values leave the file alone.
type envOverrides struct {
	LogLevel      string `env:"WOLFIE_LOG_LEVEL"`
	StorageDriver string `env:"WOLFIE_STORAGE_DRIVER"`
	StoragePath   string `env:"WOLFIE_STORAGE_PATH"`
	RedisAddr     string `env:"WOLFIE_REDIS_ADDR"`
	RedisPassword string `env:"WOLFIE_REDIS_PASSWORD"`
	RedisDB       string `env:"WOLFIE_REDIS_DB"`
}

// ApplyEnv overlays WOLFIE_* variables onto cfg. A nil environ reads the
// process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var raw envOverrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Logging.Level, raw.LogLevel)
	set(&cfg.Storage.Driver, raw.StorageDriver)
	set(&cfg.Storage.Path, raw.StoragePath)
	set(&cfg.Storage.Redis.Addr, raw.RedisAddr)
	if raw.RedisPassword != "" {
		cfg.Storage.Redis.Password = raw.RedisPassword
	}
	if v := strings.TrimSpace(raw.RedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOLFIE_REDIS_DB: %w", err)
		}
		cfg.Storage.Redis.DB = db
	}
	return nil
}
