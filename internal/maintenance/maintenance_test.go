package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "wolfie/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		expr     string
		duration time.Duration
	}{
		{name: "cron", raw: "0 0 * * 1", kind: SpecCron, source: "cron", expr: "0 0 * * 1"},
		{name: "prefixed cron", raw: "cron:@daily", kind: SpecCron, source: "cron", expr: "@daily"},
		{name: "descriptor", raw: "@every 5m", kind: SpecCron, source: "cron", expr: "@every 5m"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", expr: "@every 10m0s", duration: 10 * time.Minute},
		{name: "prefixed every", raw: "every:1m", kind: SpecInterval, source: "duration", expr: "@every 1m0s", duration: time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", expr: "@every 45s", duration: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", expr: "@every 1h30m0s", duration: 90 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if got.CronExpr() != tt.expr {
				t.Fatalf("CronExpr = %q, want %q", got.CronExpr(), tt.expr)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "00:75", "every:", "-5m", "cron:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

type fakeCommitter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCommitter) Commit(ctx context.Context, regions ...string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

type fakePruner struct{ retention time.Duration }

func (f *fakePruner) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	f.retention = olderThan
	return 2, nil
}

type fakeGrid struct {
	region string
	err    error
	resets int
}

func (f *fakeGrid) Region() string { return f.region }
func (f *fakeGrid) Reset(ctx context.Context) error {
	f.resets++
	return f.err
}

func TestStandardJobs_RunNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := &fakeCommitter{}
	pr := &fakePruner{}
	dawn := &fakeGrid{region: "dawn_battle"}
	wonder := &fakeGrid{region: "wonder_battle", err: errors.New("disk gone")}

	s := New(Config{Enabled: true}, logx.Nop())
	for _, j := range StandardJobs(JobsConfig{}, st, pr, []Resetter{dawn, wonder}, logx.Nop()) {
		if err := s.Add(j); err != nil {
			t.Fatalf("add %s: %v", j.Name, err)
		}
	}

	if err := s.RunNow(ctx, "flush"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st.calls != 1 {
		t.Fatalf("commit calls=%d", st.calls)
	}
	if err := s.RunNow(ctx, "title_prune"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pr.retention != DefaultPruneRetention {
		t.Fatalf("retention=%v", pr.retention)
	}
	if err := s.RunNow(ctx, "grid_reset"); err == nil {
		t.Fatalf("grid reset should surface the wonder failure")
	}
	if dawn.resets != 1 || wonder.resets != 1 {
		t.Fatalf("every grid should be attempted: dawn=%d wonder=%d", dawn.resets, wonder.resets)
	}
	if err := s.RunNow(ctx, "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("unknown job err=%v", err)
	}

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len=%d", len(snap))
	}
	for _, js := range snap {
		if js.Runs != 1 {
			t.Fatalf("%s runs=%d", js.Name, js.Runs)
		}
		if js.Name == "grid_reset" && js.LastErr == "" {
			t.Fatalf("grid_reset should record its error")
		}
	}
}

func TestStandardJobs_Off(t *testing.T) {
	t.Parallel()
	jobs := StandardJobs(JobsConfig{Flush: "off", GridReset: "off"}, &fakeCommitter{}, &fakePruner{}, []Resetter{&fakeGrid{}}, logx.Nop())
	if len(jobs) != 1 || jobs[0].Name != "title_prune" {
		t.Fatalf("jobs=%v", jobs)
	}
}

func TestService_AddRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	err := s.Add(Job{Name: "x", Schedule: "61 * * * *", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatalf("expected invalid cron error")
	}
	if err := s.Add(Job{Name: "", Schedule: "1m", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected name error")
	}
}

func TestService_RecoversPanics(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	_ = s.Add(Job{Name: "boom", Schedule: "1h", Run: func(context.Context) error { panic("bad") }})
	if err := s.RunNow(context.Background(), "boom"); err == nil {
		t.Fatalf("panic should become an error")
	}
}

func TestService_StartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	_ = s.Add(Job{Name: "tick", Schedule: "1h", Run: func(context.Context) error { return nil }})
	s.Start(context.Background())
	s.Apply(Config{Enabled: true, Timezone: "Asia/Tokyo"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
}
