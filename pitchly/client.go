// Package pitchly implements the outbound HTTP client for the Pitchly
// platform API: the refresh-token exchange and the viewer profile query.
package pitchly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
)

const (
	tokenPath   = "/api/oauth/token"
	graphqlPath = "/graphql"
)

// viewerProfileQuery is the fixed GraphQL query used by the profile sync.
const viewerProfileQuery = `{
  viewer {
    person {
      id
      name
      email
      image
    }
  }
}`

// Client calls the Pitchly platform API. The zero http.Client is used when
// none is supplied, leaving timeouts to the transport defaults.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the User-Agent header sent to the provider.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Pitchly API client. The default User-Agent names the
// host runtime and its version.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  fmt.Sprintf("accounts-pitchly (%s)", runtime.Version()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenExchangeRequest carries the parameters of a refresh-token grant.
// ClientSecret and RefreshToken are plaintext; unsealing happens before the
// request is built.
type TokenExchangeRequest struct {
	Origin       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	// Scope is the space-joined scope parameter, empty when not configured.
	Scope string
}

// TokenResponse is a successful refresh-token exchange.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the provider-reported lifetime of the access token in
	// seconds.
	ExpiresIn int64
}

// ProviderError is an error body returned by the token endpoint.
type ProviderError struct {
	Code        string
	Description string
	// Body is the full parsed response, preserved for the RPC error detail.
	Body map[string]any
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("pitchly token endpoint: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("pitchly token endpoint: %s", e.Code)
}

// ExchangeRefreshToken exchanges a refresh token for a new access/refresh
// token pair via POST {origin}/api/oauth/token.
func (c *Client) ExchangeRefreshToken(ctx context.Context, req TokenExchangeRequest) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {req.ClientID},
		"client_secret": {req.ClientSecret},
		"refresh_token": {req.RefreshToken},
	}
	if req.Scope != "" {
		form.Set("scope", req.Scope)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Origin+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token exchange request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token exchange response: %w", err)
	}

	var payload struct {
		AccessToken      string      `json:"access_token"`
		RefreshToken     string      `json:"refresh_token"`
		ExpiresIn        json.Number `json:"expires_in"`
		Error            string      `json:"error"`
		ErrorDescription string      `json:"error_description"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token exchange response (status %d): %w", resp.StatusCode, err)
	}

	if payload.Error != "" {
		var body map[string]any
		_ = json.Unmarshal(rawBody, &body)
		return nil, &ProviderError{
			Code:        payload.Error,
			Description: payload.ErrorDescription,
			Body:        body,
		}
	}

	// Some deployments report expires_in as a string, so it is parsed
	// rather than decoded directly into an integer.
	expiresIn, err := payload.ExpiresIn.Int64()
	if err != nil {
		return nil, fmt.Errorf("invalid expires_in in token exchange response: %w", err)
	}

	return &TokenResponse{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// ViewerPerson is the profile of the authenticated user as reported by the
// GraphQL viewer query.
type ViewerPerson struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// FetchViewerProfile queries {origin}/graphql for the viewer's person record
// using the given access token.
func (c *Client) FetchViewerProfile(ctx context.Context, origin, accessToken string) (*ViewerPerson, error) {
	reqBody, err := json.Marshal(map[string]string{"query": viewerProfileQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal viewer query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, origin+graphqlPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build viewer query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("viewer query request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Data *struct {
			Viewer struct {
				Person ViewerPerson `json:"person"`
			} `json:"viewer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal viewer query response (status %d): %w", resp.StatusCode, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("viewer query response has no data (status %d)", resp.StatusCode)
	}

	person := payload.Data.Viewer.Person
	return &person, nil
}
