package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ErrSessionNotFound is returned when a token resolves to no live session.
var ErrSessionNotFound = errors.New("session not found")

// MemorySessionStore implements SessionStore with ttlcache. Entries expire
// automatically at their session expiry.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *SessionEntry]
}

// NewMemorySessionStore creates an in-memory session store with automatic
// cleanup of expired sessions.
func NewMemorySessionStore() *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *SessionEntry](),
	)
	go cache.Start()

	return &MemorySessionStore{cache: cache}
}

// Set implements SessionStore.Set.
func (s *MemorySessionStore) Set(_ context.Context, session *SessionEntry) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	s.cache.Set(HashToken(session.Token), session, ttl)
	return nil
}

// Get implements SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, token string) (*SessionEntry, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil || item.IsExpired() {
		return nil, ErrSessionNotFound
	}
	return item.Value(), nil
}

// Delete implements SessionStore.Delete.
func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))
	return nil
}

// Stop halts the background cleanup goroutine.
func (s *MemorySessionStore) Stop() {
	s.cache.Stop()
}

var _ SessionStore = (*MemorySessionStore)(nil)
