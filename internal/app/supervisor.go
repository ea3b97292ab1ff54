package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	logx "wolfie/pkg/logx"
)

// supervisor runs named goroutines on a shared context, recovers their
// panics and remembers the first error.
type supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	wg sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

func newSupervisor(parent context.Context, log logx.Logger) *supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *supervisor) Context() context.Context { return s.ctx }

func (s *supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Go runs fn; a non-nil error (other than cancellation) or a panic cancels
// every goroutine of the supervisor.
func (s *supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				s.fail(fmt.Errorf("panic in %s: %v", name, r))
			}
		}()
		s.log.Debug("goroutine started", logx.String("name", name))
		if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *supervisor) fail(err error) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
	s.cancel()
}

// Stop cancels the context and waits for goroutines or ctx.
func (s *supervisor) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
