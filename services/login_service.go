package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pitchlyapp/accounts-pitchly/cache"
	"github.com/pitchlyapp/accounts-pitchly/domain"
	"github.com/pitchlyapp/accounts-pitchly/errors"
	"github.com/pitchlyapp/accounts-pitchly/internal/metrics"
	"github.com/pitchlyapp/accounts-pitchly/internal/secrets"
	"github.com/pitchlyapp/accounts-pitchly/log"
	"github.com/pitchlyapp/accounts-pitchly/pitchly"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/api/oauth/token"

	// sessionTTL is how long a minted login session stays valid.
	sessionTTL = 30 * 24 * time.Hour
)

// LoginResult is returned after a successful Pitchly login.
type LoginResult struct {
	UserID       string    `json:"userId"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// LoginService delegates the actual credential request to the generic OAuth
// authorization-code flow and owns what happens after: creating the user
// record on first login, sealing and storing the token pair, and minting a
// session.
type LoginService struct {
	users    domain.UserRepository
	configs  domain.ServiceConfigRepository
	sealer   secrets.Sealer
	provider *pitchly.Client
	sessions cache.SessionStore
	logger   log.Logger
	now      func() time.Time
}

// NewLoginService creates a LoginService.
func NewLoginService(
	users domain.UserRepository,
	configs domain.ServiceConfigRepository,
	sealer secrets.Sealer,
	provider *pitchly.Client,
	sessions cache.SessionStore,
	logger log.Logger,
) *LoginService {
	return &LoginService{
		users:    users,
		configs:  configs,
		sealer:   sealer,
		provider: provider,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	s.now = now
	return s
}

func (s *LoginService) oauthConfig(cfg *domain.ServiceConfig, redirectURI string) (*oauth2.Config, error) {
	clientSecret, err := s.sealer.Open(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open service secret: %w", err)
	}
	origin := cfg.OriginOrDefault()
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       cfg.AccessTokenScope,
		Endpoint: oauth2.Endpoint{
			AuthURL:  origin + authorizePath,
			TokenURL: origin + tokenPath,
		},
	}, nil
}

// AuthorizationURL builds the provider URL the user should be sent to for
// the credential request. State is the caller's CSRF token.
func (s *LoginService) AuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	cfg, err := s.configs.GetServiceConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return "", errors.NewServiceNotConfigured()
		}
		return "", err
	}
	conf, err := s.oauthConfig(cfg, redirectURI)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state), nil
}

// LoginWithPitchly exchanges an authorization code, resolves the Pitchly
// identity behind it, upserts the user's services.pitchly sub-record
// (creating the user on first login) and mints a session.
func (s *LoginService) LoginWithPitchly(ctx context.Context, code, redirectURI string) (*LoginResult, error) {
	cfg, err := s.configs.GetServiceConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return nil, errors.NewServiceNotConfigured()
		}
		return nil, err
	}

	conf, err := s.oauthConfig(cfg, redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, errors.NewRequestFailed(nil, err)
	}

	// Unlike the refresh-time sync, login needs the provider identity to
	// key the account, so a profile failure fails the login.
	person, err := s.provider.FetchViewerProfile(ctx, cfg.OriginOrDefault(), token.AccessToken)
	if err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, errors.NewRequestFailed(nil, err)
	}

	user, err := s.users.GetUserByPitchlyID(ctx, person.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		user = &domain.User{CreatedAt: s.now().UTC()}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user on first login: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	account, err := s.buildAccount(person, token)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPitchlyAccount(ctx, user.ID, account); err != nil {
		return nil, fmt.Errorf("failed to store Pitchly account: %w", err)
	}

	session, err := s.mintSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.LoginSuccessTotal.Inc()
	s.logger.Info(ctx, "Pitchly login succeeded", map[string]interface{}{
		"userID": user.ID,
	})
	return session, nil
}

func (s *LoginService) buildAccount(person *pitchly.ViewerPerson, token *oauth2.Token) (*domain.PitchlyAccount, error) {
	sealedAccess, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	sealedRefresh, err := s.sealer.Seal(token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	var expiresAt int64
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry.UnixMilli()
	}

	return &domain.PitchlyAccount{
		ID:                   person.ID,
		Name:                 person.Name,
		Email:                person.Email,
		Picture:              person.Image,
		AccessToken:          sealedAccess,
		AccessTokenExpiresAt: expiresAt,
		RefreshToken:         sealedRefresh,
		UpdatedAt:            s.now().UnixMilli(),
	}, nil
}

func (s *LoginService) mintSession(ctx context.Context, userID string) (*LoginResult, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	expiresAt := now.Add(sessionTTL)
	err := s.sessions.Set(ctx, &cache.SessionEntry{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &LoginResult{
		UserID:       userID,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}
