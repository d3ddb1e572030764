package domain

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no user document exists for an id.
	ErrUserNotFound = errors.New("user not found")
	// ErrConfigNotFound is returned when the Pitchly service has no
	// configuration row.
	ErrConfigNotFound = errors.New("service configuration not found")
)

// UserRepository is the persisted account store. Token and profile writes are
// field-level last-write-wins updates on the services.pitchly sub-document;
// no compare-and-swap is applied.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	// GetUserByPitchlyID looks a user up by the provider-side account id.
	GetUserByPitchlyID(ctx context.Context, pitchlyID string) (*User, error)
	CreateUser(ctx context.Context, user *User) error

	// SetPitchlyAccount replaces the whole services.pitchly sub-record.
	// Used by login, which owns the full record.
	SetPitchlyAccount(ctx context.Context, userID string, account *PitchlyAccount) error
	// SetPitchlyTokens writes the four token fields in a single update.
	SetPitchlyTokens(ctx context.Context, userID string, tokens PitchlyTokens) error
	// SetPitchlyProfile writes the synced profile fields in a single update.
	SetPitchlyProfile(ctx context.Context, userID string, profile PitchlyProfile) error
}

// ServiceConfigRepository resolves the Pitchly provider configuration.
type ServiceConfigRepository interface {
	GetServiceConfig(ctx context.Context) (*ServiceConfig, error)
}
