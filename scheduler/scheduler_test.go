package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pitchlyapp/accounts-pitchly/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RefreshesWhenIntervalElapsed(t *testing.T) {
	var calls atomic.Int64
	s := scheduler.New(
		func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		scheduler.WithTick(time.Millisecond),
		scheduler.WithInterval(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// First tick fires immediately since no refresh has ever succeeded.
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	first := s.LastSuccessfulRefreshAt()
	assert.False(t, first.IsZero())

	// The next refresh only happens after the interval has elapsed again.
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, s.LastSuccessfulRefreshAt().Sub(first) >= 50*time.Millisecond)
}

func TestScheduler_HoldsOffInsideInterval(t *testing.T) {
	var calls atomic.Int64
	s := scheduler.New(
		func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		scheduler.WithTick(time.Millisecond),
		scheduler.WithInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load(), "no further refresh inside the interval")
}

func TestScheduler_FailureDoesNotAdvanceLastSuccess(t *testing.T) {
	var calls atomic.Int64
	s := scheduler.New(
		func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("rpc failed")
		},
		scheduler.WithTick(time.Millisecond),
		scheduler.WithInterval(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// Every tick retries while the refresh keeps failing.
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, s.LastSuccessfulRefreshAt().IsZero())
}

func TestScheduler_RecoversAfterFailure(t *testing.T) {
	var calls atomic.Int64
	failFirst := int64(2)
	s := scheduler.New(
		func(ctx context.Context) error {
			if calls.Add(1) <= failFirst {
				return errors.New("transient")
			}
			return nil
		},
		scheduler.WithTick(time.Millisecond),
		scheduler.WithInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return !s.LastSuccessfulRefreshAt().IsZero() }, time.Second, time.Millisecond)
	assert.EqualValues(t, failFirst+1, calls.Load())

	// After the success, the hour-long interval holds further calls off.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, failFirst+1, calls.Load())
}

func TestScheduler_StopsWhenContextCancelled(t *testing.T) {
	var calls atomic.Int64
	s := scheduler.New(
		func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		scheduler.WithTick(time.Millisecond),
		scheduler.WithInterval(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "loop must stop after cancellation")
}
