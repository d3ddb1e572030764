package services_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pitchlyapp/accounts-pitchly/domain"
	svcerrors "github.com/pitchlyapp/accounts-pitchly/errors"
	"github.com/pitchlyapp/accounts-pitchly/internal/secrets"
	"github.com/pitchlyapp/accounts-pitchly/internal/testutil"
	"github.com/pitchlyapp/accounts-pitchly/log"
	"github.com/pitchlyapp/accounts-pitchly/pitchly"
	"github.com/pitchlyapp/accounts-pitchly/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an httptest-backed Pitchly platform with request counters.
type fakeProvider struct {
	server        *httptest.Server
	tokenCalls    atomic.Int64
	profileCalls  atomic.Int64
	tokenBody     []byte
	tokenStatus   int
	profileBody   []byte
	profileStatus int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		tokenBody:     []byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`),
		tokenStatus:   http.StatusOK,
		profileBody:   []byte(`{"data":{"viewer":{"person":{"id":"person-1","name":"New Name","email":"new@example.com","image":"https://example.com/new.jpg"}}}}`),
		profileStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.tokenStatus)
		_, _ = w.Write(p.tokenBody)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		p.profileCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.profileStatus)
		_, _ = w.Write(p.profileBody)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

type refreshFixture struct {
	users    *testutil.FakeUserRepository
	configs  *testutil.FakeServiceConfigRepository
	provider *fakeProvider
	service  *services.RefreshService
	now      time.Time
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	provider := newFakeProvider(t)
	users := testutil.NewFakeUserRepository()
	configs := &testutil.FakeServiceConfigRepository{
		Config: &domain.ServiceConfig{
			Service:  "pitchly",
			ClientID: "client-1",
			Secret:   "client-secret",
			Origin:   provider.server.URL,
		},
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := services.NewRefreshService(
		users, configs, secrets.PlainSealer{}, pitchly.NewClient(),
		services.NewMemoryUserLocker(), log.NewNop(),
	).WithClock(func() time.Time { return now })

	return &refreshFixture{users: users, configs: configs, provider: provider, service: svc, now: now}
}

func (f *refreshFixture) addUser(t *testing.T, id string, expiresAt int64) {
	t.Helper()
	f.users.Users[id] = &domain.User{
		ID: id,
		Services: domain.UserServices{Pitchly: &domain.PitchlyAccount{
			ID:                   "pitchly-" + id,
			Name:                 "Old Name",
			Email:                "old@example.com",
			Picture:              "https://example.com/old.jpg",
			AccessToken:          "old-access",
			AccessTokenExpiresAt: expiresAt,
			RefreshToken:         "old-refresh",
			UpdatedAt:            f.now.Add(-time.Hour).UnixMilli(),
		}},
	}
}

func remoteCtx(userID string) context.Context {
	return domain.WithCaller(context.Background(), &domain.Caller{UserID: userID, Remote: true})
}

func serverCtx() context.Context {
	return context.Background()
}

func boolPtr(b bool) *bool { return &b }

func TestRefreshAccessToken_ForceByDefault(t *testing.T) {
	f := newRefreshFixture(t)
	// Token still good for 20 minutes; default force must exchange anyway.
	f.addUser(t, "user-1", f.now.Add(20*time.Minute).UnixMilli())

	result, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.NoError(t, err)

	assert.True(t, result.Refreshed)
	assert.Equal(t, "new-access", result.AccessToken)
	assert.EqualValues(t, 3600, result.AccessTokenExpiresIn)
	assert.EqualValues(t, 1, f.provider.tokenCalls.Load())
}

func TestRefreshAccessToken_SkipsOutsideWindow(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(20*time.Minute).UnixMilli())

	result, err := f.service.RefreshAccessToken(remoteCtx("user-1"),
		&services.RefreshOptions{Force: boolPtr(false)})
	require.NoError(t, err)

	assert.False(t, result.Refreshed)
	assert.Equal(t, "old-access", result.AccessToken)
	assert.EqualValues(t, 1200, result.AccessTokenExpiresIn)
	assert.EqualValues(t, 0, f.provider.tokenCalls.Load(), "no outbound call expected")
	assert.EqualValues(t, 0, f.provider.profileCalls.Load())
	assert.Equal(t, "old-refresh", f.users.Account("user-1").RefreshToken)
}

func TestRefreshAccessToken_ExchangesInsideWindow(t *testing.T) {
	f := newRefreshFixture(t)
	// 5 minutes left is inside the 10-minute window.
	f.addUser(t, "user-1", f.now.Add(5*time.Minute).UnixMilli())

	result, err := f.service.RefreshAccessToken(remoteCtx("user-1"),
		&services.RefreshOptions{Force: boolPtr(false)})
	require.NoError(t, err)

	assert.True(t, result.Refreshed)
	assert.EqualValues(t, 1, f.provider.tokenCalls.Load())
}

func TestRefreshAccessToken_PersistsTokenSetTogether(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())

	_, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.NoError(t, err)

	account := f.users.Account("user-1")
	assert.Equal(t, "new-access", account.AccessToken)
	assert.Equal(t, "new-refresh", account.RefreshToken)
	assert.Equal(t, f.now.UnixMilli()+3600*1000, account.AccessTokenExpiresAt)
	assert.Equal(t, 1, f.users.TokenWrites)
}

func TestRefreshAccessToken_ProviderErrorLeavesTokensUntouched(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())
	f.provider.tokenStatus = http.StatusBadRequest
	f.provider.tokenBody = []byte(`{"error":"invalid_grant"}`)

	_, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.Error(t, err)

	var svcErr *svcerrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, svcerrors.CodeRequestFailed, svcErr.Code)

	account := f.users.Account("user-1")
	assert.Equal(t, "old-access", account.AccessToken)
	assert.Equal(t, "old-refresh", account.RefreshToken)
	assert.Equal(t, 0, f.users.TokenWrites)
	assert.EqualValues(t, 0, f.provider.profileCalls.Load(), "no profile sync after failed exchange")
}

func TestRefreshAccessToken_ProfileSyncUpdatesProfile(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())

	_, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.NoError(t, err)

	account := f.users.Account("user-1")
	assert.Equal(t, "New Name", account.Name)
	assert.Equal(t, "new@example.com", account.Email)
	assert.Equal(t, "https://example.com/new.jpg", account.Picture)
	assert.EqualValues(t, 1, f.provider.profileCalls.Load())
}

func TestRefreshAccessToken_ProfileSyncFailureDoesNotFailRefresh(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())
	f.provider.profileStatus = http.StatusInternalServerError
	f.provider.profileBody = []byte(`boom`)

	result, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.NoError(t, err)

	assert.True(t, result.Refreshed)
	assert.Equal(t, "new-access", result.AccessToken)

	account := f.users.Account("user-1")
	assert.Equal(t, "new-access", account.AccessToken, "token update must survive profile failure")
	assert.Equal(t, "Old Name", account.Name, "profile fields unchanged")
	assert.Equal(t, 0, f.users.ProfileWrites)
}

func TestRefreshAccessToken_RemoteCallerCannotTargetAnotherUser(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())
	f.addUser(t, "user-2", f.now.Add(time.Minute).UnixMilli())

	_, err := f.service.RefreshAccessToken(remoteCtx("user-1"),
		&services.RefreshOptions{UserID: "user-2"})
	require.NoError(t, err)

	assert.Equal(t, "new-access", f.users.Account("user-1").AccessToken)
	assert.Equal(t, "old-access", f.users.Account("user-2").AccessToken)
}

func TestRefreshAccessToken_ServerCallMayTargetUser(t *testing.T) {
	f := newRefreshFixture(t)
	f.addUser(t, "user-2", f.now.Add(time.Minute).UnixMilli())

	result, err := f.service.RefreshAccessToken(serverCtx(),
		&services.RefreshOptions{UserID: "user-2"})
	require.NoError(t, err)

	assert.True(t, result.Refreshed)
	assert.Equal(t, "new-access", f.users.Account("user-2").AccessToken)
}

func TestRefreshAccessToken_ErrorTaxonomy(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		f := newRefreshFixture(t)
		_, err := f.service.RefreshAccessToken(serverCtx(), nil)
		assert.Equal(t, svcerrors.CodeLoggedOut, svcerrors.CodeOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newRefreshFixture(t)
		_, err := f.service.RefreshAccessToken(remoteCtx("ghost"), nil)
		assert.Equal(t, svcerrors.CodeUserNotFound, svcerrors.CodeOf(err))
	})

	t.Run("no refresh token", func(t *testing.T) {
		f := newRefreshFixture(t)
		f.users.Users["user-1"] = &domain.User{ID: "user-1"}
		_, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
		assert.Equal(t, svcerrors.CodeRefreshTokenNotFound, svcerrors.CodeOf(err))
	})

	t.Run("no service configuration", func(t *testing.T) {
		f := newRefreshFixture(t)
		f.addUser(t, "user-1", f.now.Add(time.Minute).UnixMilli())
		f.configs.Config = nil
		_, err := f.service.RefreshAccessToken(remoteCtx("user-1"), nil)
		assert.Equal(t, svcerrors.CodeServiceNotConfigured, svcerrors.CodeOf(err))
	})
}

func TestRefreshAccessToken_TokensSealedAtRest(t *testing.T) {
	provider := newFakeProvider(t)
	users := testutil.NewFakeUserRepository()
	sealer, err := secrets.NewSecretboxSealer(bytes.Repeat([]byte{0x07}, secrets.KeySize))
	require.NoError(t, err)

	sealedSecret, err := sealer.Seal("client-secret")
	require.NoError(t, err)
	configs := &testutil.FakeServiceConfigRepository{
		Config: &domain.ServiceConfig{
			Service:  "pitchly",
			ClientID: "client-1",
			Secret:   sealedSecret,
			Origin:   provider.server.URL,
		},
	}

	sealedRefresh, err := sealer.Seal("old-refresh")
	require.NoError(t, err)
	users.Users["user-1"] = &domain.User{
		ID: "user-1",
		Services: domain.UserServices{Pitchly: &domain.PitchlyAccount{
			ID:           "pitchly-user-1",
			RefreshToken: sealedRefresh,
		}},
	}

	svc := services.NewRefreshService(
		users, configs, sealer, pitchly.NewClient(),
		services.NewMemoryUserLocker(), log.NewNop(),
	)

	result, err := svc.RefreshAccessToken(remoteCtx("user-1"), nil)
	require.NoError(t, err)

	// The caller gets the usable token, the store gets sealed values.
	assert.Equal(t, "new-access", result.AccessToken)
	account := users.Account("user-1")
	assert.NotEqual(t, "new-access", account.AccessToken)
	assert.NotEqual(t, "new-refresh", account.RefreshToken)

	opened, err := sealer.Open(account.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", opened)
}
