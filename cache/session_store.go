// Package cache holds the session store and read-through caches used by the
// account service.
package cache

import (
	"context"
	"time"
)

// SessionEntry is a login session held in the session store. Token holds the
// raw session token only transiently; stores key entries by token hash.
type SessionEntry struct {
	Token     string    `redis:"token"`
	UserID    string    `redis:"userId"`
	CreatedAt time.Time `redis:"createdAt"`
	ExpiresAt time.Time `redis:"expiresAt"`
}

// SessionStore resolves bearer session tokens to user identities.
type SessionStore interface {
	Set(ctx context.Context, session *SessionEntry) error
	Get(ctx context.Context, token string) (*SessionEntry, error)
	Delete(ctx context.Context, token string) error
}
