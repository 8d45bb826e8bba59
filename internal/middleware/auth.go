package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maintenance-auth/internal/model"
	"github.com/iliyamo/maintenance-auth/internal/token"
)

// Context keys set by RequireToken.
const (
	ContextClaims = "token_claims"
	ContextUserID = "user_id"
)

// Authenticator validates a raw bearer token of the wanted type, including
// its ledger state.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, want model.TokenType) (*token.Decoded, error)
}

// RequireToken returns an Echo middleware that validates the Bearer token and
// stores its claims in the context.  Handlers read them with Claims.
func RequireToken(a Authenticator, want model.TokenType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			d, err := a.Authenticate(c.Request().Context(), raw, want)
			if err != nil {
				return err
			}
			c.Set(ContextClaims, d)
			c.Set(ContextUserID, d.Subject)
			return next(c)
		}
	}
}

// Claims returns the claims stored by RequireToken, or nil.
func Claims(c echo.Context) *token.Decoded {
	d, _ := c.Get(ContextClaims).(*token.Decoded)
	return d
}

// currentUserID returns the authenticated identity or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
