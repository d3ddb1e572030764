package pitchly_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitchlyapp/accounts-pitchly/pitchly"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExchangeRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "data:read data:write", r.PostForm.Get("scope"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","expires_in":3600}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	resp, err := client.ExchangeRefreshToken(context.Background(), pitchly.TokenExchangeRequest{
		Origin:       server.URL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RefreshToken: "refresh-1",
		Scope:        "data:read data:write",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", resp.AccessToken)
	assert.Equal(t, "refresh-2", resp.RefreshToken)
	assert.EqualValues(t, 3600, resp.ExpiresIn)
}

func TestClient_ExchangeRefreshToken_OmitsEmptyScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, hasScope := r.PostForm["scope"]
		assert.False(t, hasScope)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":60}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	_, err := client.ExchangeRefreshToken(context.Background(), pitchly.TokenExchangeRequest{
		Origin:       server.URL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RefreshToken: "refresh-1",
	})
	require.NoError(t, err)
}

func TestClient_ExchangeRefreshToken_StringExpiresIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":"7200"}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	resp, err := client.ExchangeRefreshToken(context.Background(), pitchly.TokenExchangeRequest{
		Origin:       server.URL,
		ClientID:     "c",
		ClientSecret: "s",
		RefreshToken: "r",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7200, resp.ExpiresIn)
}

func TestClient_ExchangeRefreshToken_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	_, err := client.ExchangeRefreshToken(context.Background(), pitchly.TokenExchangeRequest{
		Origin:       server.URL,
		ClientID:     "c",
		ClientSecret: "s",
		RefreshToken: "r",
	})
	require.Error(t, err)

	var provErr *pitchly.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "invalid_grant", provErr.Code)
	assert.Equal(t, "refresh token revoked", provErr.Description)
	assert.Equal(t, "invalid_grant", provErr.Body["error"])
}

func TestClient_ExchangeRefreshToken_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := pitchly.NewClient()
	_, err := client.ExchangeRefreshToken(context.Background(), pitchly.TokenExchangeRequest{
		Origin:       server.URL,
		ClientID:     "c",
		ClientSecret: "s",
		RefreshToken: "r",
	})
	assert.Error(t, err)
}

func TestClient_FetchViewerProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"viewer": {
					"person": {
						"id": "person-1",
						"name": "Test Person",
						"email": "person@example.com",
						"image": "https://example.com/avatar.jpg"
					}
				}
			}
		}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	person, err := client.FetchViewerProfile(context.Background(), server.URL, "access-1")
	require.NoError(t, err)
	assert.Equal(t, "person-1", person.ID)
	assert.Equal(t, "Test Person", person.Name)
	assert.Equal(t, "person@example.com", person.Email)
	assert.Equal(t, "https://example.com/avatar.jpg", person.Image)
}

func TestClient_FetchViewerProfile_MissingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"unauthorized"}]}`))
	}))
	defer server.Close()

	client := pitchly.NewClient()
	_, err := client.FetchViewerProfile(context.Background(), server.URL, "access-1")
	assert.Error(t, err)
}
