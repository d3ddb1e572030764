// Package middleware provides the echo middleware that resolves session
// tokens to caller identities.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pitchlyapp/accounts-pitchly/cache"
	"github.com/pitchlyapp/accounts-pitchly/domain"
)

// SessionAuth resolves the Authorization bearer token to a user session and
// stores the caller identity in the request context. Calls arriving here are
// remote by definition, so the caller is always marked Remote, with an empty
// UserID when no session resolves. Requests without a resolvable session
// pass through unauthenticated; handlers decide whether identity is
// required, and an unauthenticated remote request can never be mistaken for
// a server-originated call.
func SessionAuth(sessions cache.SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := &domain.Caller{Remote: true}

			if token := bearerToken(c.Request().Header.Get("Authorization")); token != "" {
				entry, err := sessions.Get(c.Request().Context(), token)
				if err == nil {
					caller.UserID = entry.UserID
				}
				// Unknown or expired tokens proceed unauthenticated.
			}

			ctx := domain.WithCaller(c.Request().Context(), caller)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
