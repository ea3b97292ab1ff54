package config

import (
	"reflect"
	"sort"
	"strings"

	logx "wolfie/pkg/logx"
)

// SummarizeChange returns the changed sections and safe structured attrs
// for logging. Secrets such as the redis password are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oS, nS := oldCfg.Storage, newCfg.Storage
	if !reflect.DeepEqual(oS, nS) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.String("storage.redis_addr", nS.Redis.Addr),
			logx.Bool("storage.redis_password_set", nS.Redis.Password != ""),
			logx.Bool("storage.redis_password_changed", oS.Redis.Password != nS.Redis.Password),
		)
	}

	if !reflect.DeepEqual(oldCfg.Titles, newCfg.Titles) {
		changed = append(changed, "titles")
		attrs = append(attrs,
			logx.Strings("titles.categories", newCfg.Titles.Categories),
			logx.String("titles.horizon", newCfg.Titles.Horizon),
			logx.String("titles.throttle", newCfg.Titles.Throttle),
			logx.String("titles.grace", newCfg.Titles.Grace),
		)
	}

	if oldCfg.Battles != newCfg.Battles {
		changed = append(changed, "battles")
		attrs = append(attrs, logx.Int("battles.capacity", newCfg.Battles.Capacity))
	}

	if oldCfg.Guard != newCfg.Guard {
		changed = append(changed, "guard")
		attrs = append(attrs,
			logx.Any("guard.rate_per_sec", newCfg.Guard.RatePerSec),
			logx.Int("guard.burst", newCfg.Guard.Burst),
		)
	}

	if oldCfg.Maintenance != newCfg.Maintenance {
		changed = append(changed, "maintenance")
		attrs = append(attrs,
			logx.Bool("maintenance.enabled", newCfg.Maintenance.Enabled),
			logx.String("maintenance.timezone", strings.TrimSpace(newCfg.Maintenance.Timezone)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
