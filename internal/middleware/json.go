package middleware

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireJSON rejects requests that carry a body which is not
// application/json.  Bodyless requests pass.
func RequireJSON() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.ContentLength == 0 || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			mt, _, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
			if err != nil || mt != echo.MIMEApplicationJSON {
				return echo.NewHTTPError(http.StatusBadRequest, "missing JSON in request")
			}
			return next(c)
		}
	}
}
