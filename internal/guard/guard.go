// Package guard rate-limits commands per participant.
package guard

import (
	"sync"
	"time"

	"wolfie/internal/errs"

	"golang.org/x/time/rate"
)

type Config struct {
	RatePerSec float64
	Burst      int
	// IdleTTL drops limiters for participants quiet this long.
	IdleTTL time.Duration
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Guard holds one token bucket per participant. A zero RatePerSec disables it.
//
// It is safe for concurrent use.
type Guard struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	buckets   map[string]*entry
	lastSweep time.Time
}

func New(cfg Config) *Guard {
	g := &Guard{now: time.Now, buckets: map[string]*entry{}}
	g.applyLocked(cfg)
	return g
}

// WithClock replaces the time source. Tests only.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
	return g
}

func (g *Guard) Apply(cfg Config) {
	g.mu.Lock()
	g.applyLocked(cfg)
	g.mu.Unlock()
}

func (g *Guard) applyLocked(cfg Config) {
	if cfg.RatePerSec < 0 {
		cfg.RatePerSec = 0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	g.cfg = cfg
	// Existing buckets were sized for the old config.
	g.buckets = map[string]*entry{}
}

func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.RatePerSec > 0
}

// Allow consumes one token for participantID or returns a rate_limited error.
func (g *Guard) Allow(participantID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.RatePerSec <= 0 {
		return nil
	}
	now := g.now()
	g.sweepLocked(now)

	e, ok := g.buckets[participantID]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(g.cfg.RatePerSec), g.cfg.Burst)}
		g.buckets[participantID] = e
	}
	e.seen = now
	if !e.lim.AllowN(now, 1) {
		return errs.Conflict(errs.CodeRateLimited, "slow down, too many commands")
	}
	return nil
}

func (g *Guard) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.cfg.IdleTTL {
		return
	}
	g.lastSweep = now
	for id, e := range g.buckets {
		if now.Sub(e.seen) >= g.cfg.IdleTTL {
			delete(g.buckets, id)
		}
	}
}

// Tracked is the number of live buckets.
func (g *Guard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}
