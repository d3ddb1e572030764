// Package redis provides Redis-backed implementations of the session store
// and the per-user refresh lock, for multi-instance deployments.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pitchlyapp/accounts-pitchly/cache"
	"github.com/redis/go-redis/v9"
)

// SessionStore implements cache.SessionStore using Redis hashes with key
// expiry at the session expiry.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore creates a new SessionStore. Prefix namespaces the keys.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(token string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, cache.HashToken(token))
}

// Set stores a session and sets the key to expire with it.
func (s *SessionStore) Set(ctx context.Context, session *cache.SessionEntry) error {
	key := s.key(session.Token)

	entry := map[string]interface{}{
		"userId":     session.UserID,
		"created_at": session.CreatedAt.Unix(),
		"expires_at": session.ExpiresAt.Unix(),
	}
	if err := s.client.HSet(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	if err := s.client.ExpireAt(ctx, key, session.ExpiresAt).Err(); err != nil {
		return fmt.Errorf("failed to set session expiry in redis: %w", err)
	}
	return nil
}

// Get resolves a token to its session, or cache.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, token string) (*cache.SessionEntry, error) {
	vals, err := s.client.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, cache.ErrSessionNotFound
	}

	entry := &cache.SessionEntry{
		Token:  token,
		UserID: vals["userId"],
	}
	if created, err := parseUnix(vals["created_at"]); err == nil {
		entry.CreatedAt = created
	}
	expires, err := parseUnix(vals["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("malformed session entry in redis: %w", err)
	}
	entry.ExpiresAt = expires

	if time.Now().After(entry.ExpiresAt) {
		return nil, cache.ErrSessionNotFound
	}
	return entry, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

func parseUnix(v string) (time.Time, error) {
	var sec int64
	if _, err := fmt.Sscanf(v, "%d", &sec); err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

var _ cache.SessionStore = (*SessionStore)(nil)
