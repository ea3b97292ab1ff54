// Package maintenance runs optional background jobs in serve mode:
// flushing dirty regions, clearing battle grids after the weekend and
// pruning served queue entries.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	logx "wolfie/pkg/logx"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Enabled  bool
	Timezone string
	// Per-run timeout; zero means 30s.
	Timeout time.Duration
}

// Job is a named unit of maintenance work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type jobState struct {
	Job
	spec    Spec
	entryID cron.EntryID
	running sync.Mutex

	mu      sync.Mutex
	runs    int
	lastRun time.Time
	lastErr error
}

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	Name     string
	Schedule string
	Next     time.Time
	LastRun  time.Time
	LastErr  string
	Runs     int
}

var ErrUnknownJob = errors.New("maintenance: unknown job")

type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	parser cron.Parser

	c    *cron.Cron
	loc  *time.Location
	jobs map[string]*jobState

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "maintenance")),
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*jobState{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Add registers (or replaces) a job. Jobs added while running are scheduled
// immediately.
func (s *Service) Add(j Job) error {
	if strings.TrimSpace(j.Name) == "" || j.Run == nil {
		return fmt.Errorf("job name and run func required")
	}
	spec, err := ParseSchedule(j.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if _, err := s.parser.Parse(spec.CronExpr()); err != nil {
		return fmt.Errorf("job %s: invalid cron %q: %w", j.Name, spec.CronExpr(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[j.Name]; ok && s.c != nil {
		s.c.Remove(old.entryID)
	}
	js := &jobState{Job: j, spec: spec}
	s.jobs[j.Name] = js
	if s.c != nil {
		return s.scheduleLocked(js)
	}
	return nil
}

// Apply updates config; a timezone change reschedules every job.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		if !s.cfg.Enabled {
			s.log.Info("maintenance disabled")
		}
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.restartLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
}

func (s *Service) restartLocked() {
	if s.c != nil {
		s.c.Stop()
	}
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, js := range s.jobs {
		if err := s.scheduleLocked(js); err != nil {
			s.log.Error("job not scheduled", logx.String("job", js.Name), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) scheduleLocked(js *jobState) error {
	id, err := s.c.AddFunc(js.spec.CronExpr(), func() { s.run(js) })
	if err != nil {
		return err
	}
	js.entryID = id
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Stop halts triggering and waits for running jobs or ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("service stopped")
}

// RunNow runs a job synchronously, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	js, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.exec(ctx, js)
}

func (s *Service) run(js *jobState) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	// Overlapping triggers are skipped.
	if !js.running.TryLock() {
		s.log.Warn("job still running; trigger skipped", logx.String("job", js.Name))
		return
	}
	defer js.running.Unlock()
	_ = s.exec(ctx, js)
}

func (s *Service) exec(ctx context.Context, js *jobState) (err error) {
	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", js.Name, r)
		}
		js.mu.Lock()
		js.runs++
		js.lastRun = start
		js.lastErr = err
		js.mu.Unlock()
		if err != nil {
			s.log.Error("job failed", logx.String("job", js.Name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("job done", logx.String("job", js.Name), logx.Duration("took", time.Since(start)))
	}()
	return js.Run(ctx)
}

// Snapshot lists jobs by name.
func (s *Service) Snapshot() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, js := range s.jobs {
		st := JobStatus{Name: js.Name, Schedule: js.Schedule}
		if s.c != nil && js.entryID != 0 {
			st.Next = s.c.Entry(js.entryID).Next
		}
		js.mu.Lock()
		st.Runs = js.runs
		st.LastRun = js.lastRun
		if js.lastErr != nil {
			st.LastErr = js.lastErr.Error()
		}
		js.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
