// Package router assembles the echo server: global middleware, the error
// handler and every route with its guards.
package router

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/maintenance-auth/internal/config"
	"github.com/iliyamo/maintenance-auth/internal/handler"
	"github.com/iliyamo/maintenance-auth/internal/middleware"
	"github.com/iliyamo/maintenance-auth/internal/model"
	"github.com/iliyamo/maintenance-auth/internal/token"
)

// Options configures New.
type Options struct {
	Auth        *handler.AuthHandler
	Guard       middleware.Authenticator
	RateLimit   config.RateLimitConfig
	Redis       *redis.Client // nil selects the in-process limiter
	BodyLimit   string        // e.g. "1M"
	Metrics     bool
	LogRequests bool
}

var (
	metricsOnce sync.Once
	metricsMW   echo.MiddlewareFunc
)

// echoprometheus registers its collectors globally, so the middleware is
// built once per process.
func metricsMiddleware() echo.MiddlewareFunc {
	metricsOnce.Do(func() {
		metricsMW = echoprometheus.NewMiddleware("maintenance_auth")
	})
	return metricsMW
}

// New returns a configured echo instance.
func New(o Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler

	limit := o.BodyLimit
	if limit == "" {
		limit = "1M"
	}
	e.Use(echomw.BodyLimit(limit))
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	if o.Metrics {
		e.Use(metricsMiddleware())
	}
	e.Use(echomw.Recover())
	if o.LogRequests {
		e.Use(echomw.Logger())
	}

	RegisterRoutes(e)
	RegisterAuth(e, o.Auth, o.Guard, middleware.NewTokenBucket(o.RateLimit, o.Redis))
	RegisterProfile(e, o.Auth, o.Guard)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the /v1/auth endpoints.  limit guards the endpoints
// that accept credentials or codes.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard middleware.Authenticator, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", middleware.RequireJSON())

	access := middleware.RequireToken(guard, model.TokenAccess)
	verification := []echo.MiddlewareFunc{
		limit,
		middleware.RequireToken(guard, model.TokenVerification),
		middleware.RequireClaim(token.ClaimVerification),
	}
	verified := []echo.MiddlewareFunc{
		middleware.RequireToken(guard, model.TokenVerified),
		middleware.RequireClaim(token.ClaimVerified),
	}

	g.POST("/sign-up", a.SignUp)
	g.POST("/login", a.Login, limit)
	g.GET("/logout", a.Logout, access)
	g.DELETE("/logout", a.Logout, access)
	g.GET("/email-query", a.EmailQuery)

	g.GET("/request-verification-code", a.RequestVerificationCode, limit)
	g.PUT("/check-verification-code", a.CheckVerificationCode, verification...)
	g.PUT("/confirm-email", a.ConfirmEmail, verified...)
	g.PUT("/reset-password", a.ResetPassword, verified...)

	g.GET("/request-confirmation-link", a.RequestConfirmationLink, limit)
	g.GET("/confirm-email/:token", a.ConfirmEmailLink)
}

// RegisterProfile registers the session-guarded profile endpoints.
func RegisterProfile(e *echo.Echo, a *handler.AuthHandler, guard middleware.Authenticator) {
	g := e.Group("/v1/profile",
		middleware.RequireJSON(),
		middleware.RequireToken(guard, model.TokenAccess),
	)
	g.GET("", a.GetProfile)
	g.PUT("", a.UpdateProfile)
}
