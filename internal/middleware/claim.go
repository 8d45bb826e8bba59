package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireClaim enforces that the token stored by RequireToken carries every
// listed boolean claim set to true.  It keeps a plain session token from
// being replayed on the verification endpoints.
func RequireClaim(names ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := Claims(c)
			if d == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			for _, n := range names {
				if !d.Flag(n) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token lacks the "+n+" claim")
				}
			}
			return next(c)
		}
	}
}
