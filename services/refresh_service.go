// Package services holds the token refresh coordinator and the login
// delegation for the Pitchly accounts integration.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pitchlyapp/accounts-pitchly/domain"
	"github.com/pitchlyapp/accounts-pitchly/errors"
	"github.com/pitchlyapp/accounts-pitchly/internal/metrics"
	"github.com/pitchlyapp/accounts-pitchly/internal/secrets"
	"github.com/pitchlyapp/accounts-pitchly/log"
	"github.com/pitchlyapp/accounts-pitchly/pitchly"
)

// refreshWindow is how close to expiry a token must be before a non-forced
// call performs the exchange.
const refreshWindow = 10 * time.Minute

// RefreshOptions are the validated inputs of RefreshAccessToken. UserID is
// honored only for server-originated calls; Force defaults to true when nil.
type RefreshOptions struct {
	UserID string
	Force  *bool
}

func (o *RefreshOptions) force() bool {
	if o == nil || o.Force == nil {
		return true
	}
	return *o.Force
}

// RefreshResult reports the current access token after a refresh call.
// AccessTokenExpiresIn is in seconds: the provider-reported expires_in when a
// new token was acquired, or the remaining lifetime of the cached token when
// the exchange was skipped.
type RefreshResult struct {
	Refreshed            bool   `json:"refreshed"`
	AccessToken          string `json:"accessToken"`
	AccessTokenExpiresIn int64  `json:"accessTokenExpiresIn"`
}

// RefreshService is the token refresh coordinator. On each call it decides
// whether an exchange is needed, performs it, persists the rotated token
// pair, and best-effort syncs the user's profile.
type RefreshService struct {
	users    domain.UserRepository
	configs  domain.ServiceConfigRepository
	sealer   secrets.Sealer
	provider *pitchly.Client
	locks    UserLocker
	logger   log.Logger
	now      func() time.Time
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(
	users domain.UserRepository,
	configs domain.ServiceConfigRepository,
	sealer secrets.Sealer,
	provider *pitchly.Client,
	locks UserLocker,
	logger log.Logger,
) *RefreshService {
	return &RefreshService{
		users:    users,
		configs:  configs,
		sealer:   sealer,
		provider: provider,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *RefreshService) WithClock(now func() time.Time) *RefreshService {
	s.now = now
	return s
}

// RefreshAccessToken refreshes the access token for the resolved target
// user. Remote callers always act on their own account; a userId override is
// honored only for server-originated calls.
func (s *RefreshService) RefreshAccessToken(ctx context.Context, opts *RefreshOptions) (*RefreshResult, error) {
	userID := s.resolveUserID(ctx, opts)
	if userID == "" {
		return nil, errors.NewLoggedOut()
	}

	// Serialize refreshes per user so concurrent calls cannot race on the
	// single-use refresh token.
	release, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, errors.NewUserNotFound()
		}
		return nil, err
	}
	account := user.Services.Pitchly
	if account == nil || account.RefreshToken == "" {
		return nil, errors.NewRefreshTokenNotFound()
	}

	cfg, err := s.configs.GetServiceConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return nil, errors.NewServiceNotConfigured()
		}
		return nil, err
	}

	now := s.now()
	if !opts.force() && account.AccessTokenExpiresAt > now.UnixMilli()+refreshWindow.Milliseconds() {
		// Not near expiry; answer from the stored token.
		accessToken, err := s.sealer.Open(account.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to open stored access token: %w", err)
		}
		metrics.RefreshSkippedTotal.Inc()
		return &RefreshResult{
			Refreshed:            false,
			AccessToken:          accessToken,
			AccessTokenExpiresIn: (account.AccessTokenExpiresAt - now.UnixMilli()) / 1000,
		}, nil
	}

	result, err := s.exchange(ctx, cfg, account, userID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RefreshService) resolveUserID(ctx context.Context, opts *RefreshOptions) string {
	caller, ok := domain.CallerFromContext(ctx)

	var userID string
	if ok {
		userID = caller.UserID
	}
	// Remote callers can never target another user's account.
	if (!ok || !caller.Remote) && opts != nil && opts.UserID != "" {
		userID = opts.UserID
	}
	return userID
}

func (s *RefreshService) exchange(ctx context.Context, cfg *domain.ServiceConfig, account *domain.PitchlyAccount, userID string) (*RefreshResult, error) {
	clientSecret, err := s.sealer.Open(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open service secret: %w", err)
	}
	refreshToken, err := s.sealer.Open(account.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored refresh token: %w", err)
	}

	resp, err := s.provider.ExchangeRefreshToken(ctx, pitchly.TokenExchangeRequest{
		Origin:       cfg.OriginOrDefault(),
		ClientID:     cfg.ClientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		Scope:        cfg.ScopeParam(),
	})
	if err != nil {
		metrics.RefreshFailedTotal.Inc()
		var provErr *pitchly.ProviderError
		if errors.As(err, &provErr) {
			return nil, errors.NewRequestFailed(provErr.Body, err)
		}
		return nil, errors.NewRequestFailed(nil, err)
	}

	exchangedAt := s.now()
	sealedAccess, err := s.sealer.Seal(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	sealedRefresh, err := s.sealer.Seal(resp.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	err = s.users.SetPitchlyTokens(ctx, userID, domain.PitchlyTokens{
		AccessToken:          sealedAccess,
		AccessTokenExpiresAt: exchangedAt.UnixMilli() + resp.ExpiresIn*1000,
		RefreshToken:         sealedRefresh,
		UpdatedAt:            exchangedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist rotated tokens: %w", err)
	}
	metrics.RefreshPerformedTotal.Inc()

	// Update profile info while we're at it. Not mission critical: any
	// failure is logged and discarded.
	s.syncProfile(ctx, cfg, userID, resp.AccessToken)

	return &RefreshResult{
		Refreshed:            true,
		AccessToken:          resp.AccessToken,
		AccessTokenExpiresIn: resp.ExpiresIn,
	}, nil
}

func (s *RefreshService) syncProfile(ctx context.Context, cfg *domain.ServiceConfig, userID, accessToken string) {
	person, err := s.provider.FetchViewerProfile(ctx, cfg.OriginOrDefault(), accessToken)
	if err != nil {
		metrics.ProfileSyncFailedTotal.Inc()
		s.logger.Warn(ctx, "Pitchly profile sync failed", map[string]interface{}{
			"userID": userID,
			"error":  err.Error(),
		})
		return
	}

	err = s.users.SetPitchlyProfile(ctx, userID, domain.PitchlyProfile{
		Name:      person.Name,
		Email:     person.Email,
		Picture:   person.Image,
		UpdatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		metrics.ProfileSyncFailedTotal.Inc()
		s.logger.Warn(ctx, "Failed to persist synced Pitchly profile", map[string]interface{}{
			"userID": userID,
			"error":  err.Error(),
		})
	}
}
