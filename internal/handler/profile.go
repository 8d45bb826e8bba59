package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maintenance-auth/internal/middleware"
	"github.com/iliyamo/maintenance-auth/internal/service"
)

// GetProfile returns the caller's profile.
func (h *AuthHandler) GetProfile(c echo.Context) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Svc.Profile(ctx, claims.Subject)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", echo.Map{"user": p})
}

// UpdateProfile edits names and avatar.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	var in service.ProfileInput
	if err := c.Bind(&in); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Svc.UpdateProfile(ctx, claims.Subject, in)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "profile updated", echo.Map{"user": p})
}
