package maintenance

import (
	"context"
	"errors"
	"time"

	logx "wolfie/pkg/logx"
)

// Defaults for the standard jobs.
const (
	DefaultFlush          = "every:1m"
	DefaultGridReset      = "0 0 * * 1" // Monday 00:00, after the weekend battles
	DefaultTitlePrune     = "@daily"
	DefaultPruneRetention = 72 * time.Hour
)

type Committer interface {
	Commit(ctx context.Context, regions ...string) error
}

type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

type Resetter interface {
	Region() string
	Reset(ctx context.Context) error
}

// JobsConfig schedules the standard jobs; an empty schedule uses the default
// and "off" disables that job.
type JobsConfig struct {
	Flush          string
	GridReset      string
	TitlePrune     string
	PruneRetention time.Duration
}

// StandardJobs builds the flush, grid reset and title prune jobs.
func StandardJobs(cfg JobsConfig, st Committer, titles Pruner, grids []Resetter, log logx.Logger) []Job {
	if log.IsZero() {
		log = logx.Nop()
	}
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	retention := cfg.PruneRetention
	if retention <= 0 {
		retention = DefaultPruneRetention
	}

	var jobs []Job
	if s := pick(cfg.Flush, DefaultFlush); s != "off" && st != nil {
		jobs = append(jobs, Job{Name: "flush", Schedule: s, Run: func(ctx context.Context) error {
			return st.Commit(ctx)
		}})
	}
	if s := pick(cfg.GridReset, DefaultGridReset); s != "off" && len(grids) > 0 {
		jobs = append(jobs, Job{Name: "grid_reset", Schedule: s, Run: func(ctx context.Context) error {
			var errs []error
			for _, g := range grids {
				if err := g.Reset(ctx); err != nil {
					errs = append(errs, err)
					continue
				}
				log.Info("battle grid cleared", logx.String("region", g.Region()))
			}
			return errors.Join(errs...)
		}})
	}
	if s := pick(cfg.TitlePrune, DefaultTitlePrune); s != "off" && titles != nil {
		jobs = append(jobs, Job{Name: "title_prune", Schedule: s, Run: func(ctx context.Context) error {
			_, err := titles.Prune(ctx, retention)
			return err
		}})
	}
	return jobs
}
