package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshLock is a distributed per-user mutual exclusion for token
// refreshes, built on SET NX with a TTL. The TTL bounds how long a crashed
// holder can block other instances.
type RefreshLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRefreshLock creates a RefreshLock. ttl is the maximum hold time, retry
// the polling interval while waiting for a held lock.
func NewRefreshLock(client *redis.Client, prefix string, ttl, retry time.Duration) *RefreshLock {
	return &RefreshLock{client: client, prefix: prefix, ttl: ttl, retry: retry}
}

func (l *RefreshLock) key(userID string) string {
	return fmt.Sprintf("%s:refresh_lock:%s", l.prefix, userID)
}

// Lock acquires the per-user lock, blocking until it is available or ctx is
// done. The returned release func deletes the lock only if this caller still
// holds it.
func (l *RefreshLock) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.key(userID)
	holder := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	release := func() {
		// Release is best effort; the TTL reclaims the lock on failure.
		current, err := l.client.Get(context.Background(), key).Result()
		if err == nil && current == holder {
			_ = l.client.Del(context.Background(), key).Err()
		}
	}
	return release, nil
}
