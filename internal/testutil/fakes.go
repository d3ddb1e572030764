// Package testutil provides in-memory repository fakes shared by the service
// and API tests.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pitchlyapp/accounts-pitchly/domain"
)

// FakeUserRepository is an in-memory domain.UserRepository. Write counters
// let tests assert how a call touched the store.
type FakeUserRepository struct {
	mu            sync.Mutex
	Users         map[string]*domain.User
	TokenWrites   int
	ProfileWrites int

	// FailTokenWrite / FailProfileWrite, when set, are returned by the
	// corresponding write.
	FailTokenWrite   error
	FailProfileWrite error
}

func NewFakeUserRepository() *FakeUserRepository {
	return &FakeUserRepository{Users: make(map[string]*domain.User)}
}

func (r *FakeUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	if user.Services.Pitchly != nil {
		account := *user.Services.Pitchly
		copied.Services.Pitchly = &account
	}
	return &copied, nil
}

func (r *FakeUserRepository) GetUserByPitchlyID(_ context.Context, pitchlyID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.Users {
		if user.Services.Pitchly != nil && user.Services.Pitchly.ID == pitchlyID {
			copied := *user
			account := *user.Services.Pitchly
			copied.Services.Pitchly = &account
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *FakeUserRepository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.Users[user.ID] = user
	return nil
}

func (r *FakeUserRepository) SetPitchlyAccount(_ context.Context, userID string, account *domain.PitchlyAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.Users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Services.Pitchly = account
	return nil
}

func (r *FakeUserRepository) SetPitchlyTokens(_ context.Context, userID string, tokens domain.PitchlyTokens) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTokenWrite != nil {
		return r.FailTokenWrite
	}
	user, ok := r.Users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.Services.Pitchly == nil {
		user.Services.Pitchly = &domain.PitchlyAccount{}
	}
	account := user.Services.Pitchly
	account.AccessToken = tokens.AccessToken
	account.AccessTokenExpiresAt = tokens.AccessTokenExpiresAt
	account.RefreshToken = tokens.RefreshToken
	account.UpdatedAt = tokens.UpdatedAt
	r.TokenWrites++
	return nil
}

func (r *FakeUserRepository) SetPitchlyProfile(_ context.Context, userID string, profile domain.PitchlyProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailProfileWrite != nil {
		return r.FailProfileWrite
	}
	user, ok := r.Users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.Services.Pitchly == nil {
		user.Services.Pitchly = &domain.PitchlyAccount{}
	}
	account := user.Services.Pitchly
	account.Name = profile.Name
	account.Email = profile.Email
	account.Picture = profile.Picture
	account.UpdatedAt = profile.UpdatedAt
	r.ProfileWrites++
	return nil
}

// Account returns the stored sub-record for assertions.
func (r *FakeUserRepository) Account(userID string) *domain.PitchlyAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.Users[userID]
	if !ok || user.Services.Pitchly == nil {
		return nil
	}
	account := *user.Services.Pitchly
	return &account
}

var _ domain.UserRepository = (*FakeUserRepository)(nil)

// FakeServiceConfigRepository is an in-memory domain.ServiceConfigRepository.
type FakeServiceConfigRepository struct {
	mu     sync.Mutex
	Config *domain.ServiceConfig
	Calls  int
}

func (r *FakeServiceConfigRepository) GetServiceConfig(_ context.Context) (*domain.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Config == nil {
		return nil, domain.ErrConfigNotFound
	}
	copied := *r.Config
	return &copied, nil
}

var _ domain.ServiceConfigRepository = (*FakeServiceConfigRepository)(nil)
