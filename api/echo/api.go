// Package echo exposes the Pitchly account operations over HTTP.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pitchlyapp/accounts-pitchly/domain"
	svcerrors "github.com/pitchlyapp/accounts-pitchly/errors"
	"github.com/pitchlyapp/accounts-pitchly/internal/secrets"
	"github.com/pitchlyapp/accounts-pitchly/services"
	"github.com/rs/zerolog/log"
)

// AccountsAPI holds the handlers for the Pitchly accounts endpoints.
type AccountsAPI struct {
	refresh *services.RefreshService
	login   *services.LoginService
	users   domain.UserRepository
	sealer  secrets.Sealer
}

// NewAccountsAPI initializes the accounts API.
func NewAccountsAPI(
	refresh *services.RefreshService,
	login *services.LoginService,
	users domain.UserRepository,
	sealer secrets.Sealer,
) *AccountsAPI {
	return &AccountsAPI{
		refresh: refresh,
		login:   login,
		users:   users,
		sealer:  sealer,
	}
}

// RegisterRoutes registers the accounts routes.
func (a *AccountsAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/pitchly/refreshAccessToken", a.RefreshAccessTokenHandler)
	e.POST("/pitchly/login", a.LoginHandler)
	e.GET("/pitchly/loginUrl", a.LoginURLHandler)
	e.GET("/pitchly/users/:id", a.UserHandler)
}

type refreshRequest struct {
	UserID string `json:"userId"`
	Force  *bool  `json:"force"`
}

// RefreshAccessTokenHandler is the refresh RPC. The body is optional; a
// malformed body is rejected rather than coerced. Remote callers always act
// on their own account regardless of any supplied userId.
func (a *AccountsAPI) RefreshAccessTokenHandler(c echo.Context) error {
	var req refreshRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return a.writeError(c, svcerrors.NewInvalidOptions("Request body must be a JSON object with optional userId and force fields."))
		}
	}

	result, err := a.refresh.RefreshAccessToken(c.Request().Context(), &services.RefreshOptions{
		UserID: req.UserID,
		Force:  req.Force,
	})
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type loginRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// LoginHandler completes the OAuth login: it forwards the authorization code
// to the login service and returns the minted session.
func (a *AccountsAPI) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return a.writeError(c, svcerrors.NewInvalidOptions("Request body must include an authorization code."))
	}

	result, err := a.login.LoginWithPitchly(c.Request().Context(), req.Code, req.RedirectURI)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// LoginURLHandler returns the provider authorization URL for a credential
// request.
func (a *AccountsAPI) LoginURLHandler(c echo.Context) error {
	state := c.QueryParam("state")
	redirectURI := c.QueryParam("redirectUri")
	if state == "" || redirectURI == "" {
		return a.writeError(c, svcerrors.NewInvalidOptions("state and redirectUri query parameters are required."))
	}

	url, err := a.login.AuthorizationURL(c.Request().Context(), state, redirectURI)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// ownUserView is what a logged-in user sees about their own account. The
// access token is included so clients can call the Pitchly API directly; the
// refresh token never appears in any view.
type ownUserView struct {
	ID                   string `json:"id"`
	Name                 string `json:"name,omitempty"`
	Email                string `json:"email,omitempty"`
	Picture              string `json:"picture,omitempty"`
	OrganizationID       string `json:"organizationId,omitempty"`
	AccessToken          string `json:"accessToken,omitempty"`
	AccessTokenExpiresAt int64  `json:"accessTokenExpiresAt,omitempty"`
	UpdatedAt            int64  `json:"updatedAt,omitempty"`
}

// publicUserView is what anyone else sees.
type publicUserView struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Picture        string `json:"picture,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// UserHandler publishes the services.pitchly fields for a user, filtered by
// who is asking.
func (a *AccountsAPI) UserHandler(c echo.Context) error {
	targetID := c.Param("id")
	user, err := a.users.GetUserByID(c.Request().Context(), targetID)
	if err != nil {
		if svcerrors.Is(err, domain.ErrUserNotFound) {
			return a.writeError(c, svcerrors.NewUserNotFound())
		}
		return a.writeError(c, err)
	}
	account := user.Services.Pitchly
	if account == nil {
		return a.writeError(c, svcerrors.NewUserNotFound())
	}

	caller, _ := domain.CallerFromContext(c.Request().Context())
	if caller == nil || caller.UserID != targetID {
		return c.JSON(http.StatusOK, publicUserView{
			ID:             account.ID,
			Name:           account.Name,
			Picture:        account.Picture,
			OrganizationID: account.OrganizationID,
		})
	}

	accessToken := ""
	if account.AccessToken != "" {
		accessToken, err = a.sealer.Open(account.AccessToken)
		if err != nil {
			return a.writeError(c, err)
		}
	}

	return c.JSON(http.StatusOK, ownUserView{
		ID:                   account.ID,
		Name:                 account.Name,
		Email:                account.Email,
		Picture:              account.Picture,
		OrganizationID:       account.OrganizationID,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: account.AccessTokenExpiresAt,
		UpdatedAt:            account.UpdatedAt,
	})
}

// writeError maps service errors to HTTP statuses, keeping the stable code
// in the body.
func (a *AccountsAPI) writeError(c echo.Context, err error) error {
	var svcErr *svcerrors.ServiceError
	if !svcerrors.As(err, &svcErr) {
		log.Error().Err(err).Msg("Unhandled error in accounts API")
		svcErr = &svcerrors.ServiceError{
			Code:    svcerrors.CodeServerError,
			Message: "Internal server error.",
		}
	}

	return c.JSON(statusForCode(svcErr.Code), svcErr)
}

func statusForCode(code string) int {
	switch code {
	case svcerrors.CodeLoggedOut:
		return http.StatusUnauthorized
	case svcerrors.CodeUserNotFound:
		return http.StatusNotFound
	case svcerrors.CodeRefreshTokenNotFound:
		return http.StatusNotFound
	case svcerrors.CodeInvalidOptions:
		return http.StatusBadRequest
	case svcerrors.CodeRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
