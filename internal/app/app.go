// Package app wires configuration, storage, the domain services and the
// optional maintenance jobs into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wolfie/internal/battle"
	"wolfie/internal/command"
	"wolfie/internal/config"
	"wolfie/internal/eventbus"
	"wolfie/internal/guard"
	"wolfie/internal/maintenance"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	"wolfie/internal/storage"
	"wolfie/internal/titles"
	logx "wolfie/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	st   *state.Coordinator

	prefs  *prefs.Service
	titles *titles.Service
	dawn   *battle.Dawn
	wonder *battle.Wonder
	guard  *guard.Guard
	disp   *command.Dispatcher
	maint  *maintenance.Service
}

// New loads the config at cfgPath, opens storage and initializes every
// region. A missing file runs with defaults.
func New(ctx context.Context, cfgPath string) (*App, error) {
	return newApp(ctx, config.NewManager(cfgPath))
}

func newApp(ctx context.Context, cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))

	backend, err := storage.Open(storageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	bus := eventbus.New()
	st := state.New(storage.NewRegions(backend, log), state.WithBus(bus), state.WithLogger(log))

	pr := prefs.New(st, log)
	ts := titles.New(st, pr, log,
		titles.WithCategories(cfg.Titles.Categories),
		titles.WithHorizon(config.DurationOr(cfg.Titles.Horizon, titles.DefaultHorizon)),
		titles.WithThrottle(config.DurationOr(cfg.Titles.Throttle, titles.DefaultThrottle)),
		titles.WithGrace(config.DurationOr(cfg.Titles.Grace, titles.DefaultGrace)),
	)
	dawn := battle.NewDawn(st, pr, log, battle.WithCapacity(cfg.Battles.Capacity))
	wonder := battle.NewWonder(st, pr, log, battle.WithCapacity(cfg.Battles.Capacity))
	g := guard.New(guardConfig(cfg))

	a := &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		bus:    bus,
		st:     st,
		prefs:  pr,
		titles: ts,
		dawn:   dawn,
		wonder: wonder,
		guard:  g,
		disp: command.New(command.Deps{
			State: st, Prefs: pr, Titles: ts, Dawn: dawn, Wonder: wonder, Guard: g, Log: log,
		}),
		maint: maintenance.New(maintenanceConfig(cfg), log),
	}

	jobs := maintenance.StandardJobs(jobsConfig(cfg), st, ts, []maintenance.Resetter{dawn, wonder}, log)
	for _, j := range jobs {
		if err := a.maint.Add(j); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("maintenance: %w", err)
		}
	}

	inits := []struct {
		name string
		fn   func(context.Context) error
	}{
		{prefs.Region, pr.Initialize},
		{titles.Region, ts.Initialize},
		{dawn.Region(), dawn.Initialize},
		{wonder.Region(), wonder.Initialize},
	}
	for _, in := range inits {
		if err := in.fn(ctx); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("initialize %s: %w", in.name, err)
		}
	}

	a.log.Debug("app ready",
		logx.String("storage", cfg.Storage.Driver),
		logx.Int("categories", len(ts.Categories())),
		logx.Int("jobs", len(jobs)),
	)
	return a, nil
}

// validate rejects configs the services would silently reinterpret.
func validate(cfg *config.Config) error {
	for _, name := range cfg.Titles.Categories {
		if _, ok := titles.LookupCategory(name); !ok {
			return fmt.Errorf("titles.categories: unknown category %q (valid: %s)", name, strings.Join(titles.CategoryNames(), ", "))
		}
	}
	for _, s := range []struct{ path, raw string }{
		{"maintenance.flush", cfg.Maintenance.Flush},
		{"maintenance.grid_reset", cfg.Maintenance.GridReset},
		{"maintenance.title_prune", cfg.Maintenance.TitlePrune},
	} {
		raw := strings.TrimSpace(s.raw)
		if raw == "" || raw == "off" {
			continue
		}
		if _, err := maintenance.ParseSchedule(raw); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
	}
	return nil
}

func (a *App) Config() *config.Config            { return a.cfgm.Get() }
func (a *App) Logger() logx.Logger               { return a.log }
func (a *App) Bus() eventbus.Bus                 { return a.bus }
func (a *App) State() *state.Coordinator         { return a.st }
func (a *App) Prefs() *prefs.Service             { return a.prefs }
func (a *App) Titles() *titles.Service           { return a.titles }
func (a *App) Dawn() *battle.Dawn                { return a.dawn }
func (a *App) Wonder() *battle.Wonder            { return a.wonder }
func (a *App) Dispatcher() *command.Dispatcher   { return a.disp }
func (a *App) Maintenance() *maintenance.Service { return a.maint }

// Done is closed when the serve-mode goroutines stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error of serve mode, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start enters serve mode: config hot reload, event logging and the
// maintenance jobs. One-shot CLI commands never call it.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = newSupervisor(ctx, a.log)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				if a.log.Enabled(logx.LevelDebug) {
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		}
	})

	a.maint.Start(a.sup.Context())
	a.log.Info("serving", logx.String("config", a.cfgm.Path()), logx.Bool("maintenance", a.maint.Enabled()))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest config matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(last, next)
			last = next
		}
	}
}

// apply hot-swaps what can change at runtime. Storage, titles and battle
// settings are fixed for the life of the process.
func (a *App) apply(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(logConfig(next))
		case "guard":
			a.guard.Apply(guardConfig(next))
		case "maintenance":
			a.maint.Apply(maintenanceConfig(next))
		default:
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: sections})
}

// Stop halts background work, flushes dirty regions and closes storage.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	a.maint.Stop(ctx)
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop goroutines: %w", err))
		}
	}
	if err := a.st.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close state: %w", err))
	}
	a.log.Debug("app stopped")
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close(ctx context.Context) {
	_ = a.st.Close(ctx)
	_ = a.logs.Close()
}
