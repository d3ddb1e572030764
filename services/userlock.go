package services

import (
	"context"
	"sync"
)

// UserLocker serializes token refreshes per user id. Without it, two
// overlapping refreshes for one user would each rotate the refresh token and
// the loser's rotated token would be dead on arrival.
type UserLocker interface {
	// Lock blocks until the per-user lock is held or ctx is done. The
	// returned func releases the lock.
	Lock(ctx context.Context, userID string) (func(), error)
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// memoryUserLocker is an in-process UserLocker built from reference-counted
// mutexes, one per active user id.
type memoryUserLocker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

// NewMemoryUserLocker creates an in-process UserLocker. Sufficient for a
// single-instance deployment; multi-instance deployments should use the
// Redis-backed lock instead.
func NewMemoryUserLocker() UserLocker {
	return &memoryUserLocker{locks: make(map[string]*userLock)}
}

func (l *memoryUserLocker) Lock(_ context.Context, userID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	release := func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
	return release, nil
}
