// Package scheduler implements the client-side periodic refresh loop.
//
// A plain six-minute timer is not reliably honored when the host suspends
// timers (device sleep, background tabs, stopped containers), so the loop
// re-arms a one-second tick and compares elapsed wall-clock time against the
// refresh interval on every tick. Refreshes therefore happen roughly every
// six minutes of real time, and a failed attempt is retried on the next
// tick.
package scheduler

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultTick is how often the loop re-checks elapsed time.
	DefaultTick = time.Second
	// DefaultInterval is how much wall-clock time must pass between
	// successful refreshes before the next one is attempted.
	DefaultInterval = 6 * time.Minute
)

// RefreshFunc performs one refresh attempt. The scheduler treats a nil error
// as success.
type RefreshFunc func(ctx context.Context) error

// Scheduler is a self-re-arming refresh loop. State is session-scoped and
// owned by the instance; LastSuccessfulRefreshAt is exposed for inspection
// and tests.
type Scheduler struct {
	refresh  RefreshFunc
	tick     time.Duration
	interval time.Duration
	now      func() time.Time

	mu                      sync.Mutex
	lastSuccessfulRefreshAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick overrides the re-check cadence.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithInterval overrides the wall-clock refresh interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the scheduler clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler around refresh.
func New(refresh RefreshFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		refresh:  refresh,
		tick:     DefaultTick,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the loop until ctx is done. Calls never overlap: the next
// tick is armed only after the previous refresh attempt has returned.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.tick)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if s.due() {
			startedAt := s.now()
			if err := s.refresh(ctx); err == nil {
				s.setLastSuccessfulRefreshAt(startedAt)
			}
			// Errors are absorbed; the next tick retries naturally.
		}

		timer.Reset(s.tick)
	}
}

// Start launches Run on its own goroutine and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Scheduler) due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccessfulRefreshAt.Before(s.now().Add(-s.interval))
}

func (s *Scheduler) setLastSuccessfulRefreshAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccessfulRefreshAt = t
}

// LastSuccessfulRefreshAt reports when the last successful refresh started.
// Zero until the first success.
func (s *Scheduler) LastSuccessfulRefreshAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccessfulRefreshAt
}
