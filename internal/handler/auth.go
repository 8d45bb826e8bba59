package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maintenance-auth/internal/middleware"
	"github.com/iliyamo/maintenance-auth/internal/service"
	"github.com/iliyamo/maintenance-auth/internal/utils"
)

const requestTimeout = 5 * time.Second

// AuthHandler exposes the account workflows over HTTP.
type AuthHandler struct {
	Svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	if svc == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{Svc: svc}
}

// ----- DTOs -----

type signUpReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FName    string `json:"fname"`
	LName    string `json:"lname"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type checkCodeReq struct {
	Code any `json:"verification_code"`
}

type resetPasswordReq struct {
	NewPassword string `json:"new_password"`
}

// SignUp registers an unconfirmed account.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if missing := utils.Missing(map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"fname":    req.FName,
		"lname":    req.LName,
	}, "email", "password", "fname", "lname"); len(missing) > 0 {
		return missingFields(c, missing)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Svc.SignUp(ctx, service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FName:    req.FName,
		LName:    req.LName,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, "user created", echo.Map{"user": u.Profile()})
}

// Login returns a session token for confirmed, active accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if missing := utils.Missing(map[string]string{"email": req.Email, "password": req.Password}, "email", "password"); len(missing) > 0 {
		return missingFields(c, missing)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "login successful", res)
}

// Logout revokes the presented token, or every token of the caller when
// all=true.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if all, _ := strconv.ParseBool(c.QueryParam("all")); all {
		n, err := h.Svc.LogoutAll(ctx, claims.Subject)
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, "all sessions ended", echo.Map{"revoked": n})
	}
	if err := h.Svc.Logout(ctx, claims.JTI); err != nil {
		return err
	}
	return success(c, http.StatusOK, "logout successful", nil)
}

// EmailQuery answers 200 for registered addresses and 404 otherwise.
func (h *AuthHandler) EmailQuery(c echo.Context) error {
	email := c.QueryParam("email")
	if strings.TrimSpace(email) == "" {
		return missingFields(c, []string{"email"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.EmailExists(ctx, email); err != nil {
		return err
	}
	return success(c, http.StatusOK, "email found", nil)
}

// RequestVerificationCode mails a code and returns the token to present
// with it.
func (h *AuthHandler) RequestVerificationCode(c echo.Context) error {
	email := c.QueryParam("email")
	if strings.TrimSpace(email) == "" {
		return missingFields(c, []string{"email"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.RequestVerificationCode(ctx, email)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "verification code sent", echo.Map{"verification_token": res.Token})
}

// CheckVerificationCode trades a matching code for a verified token.
func (h *AuthHandler) CheckVerificationCode(c echo.Context) error {
	var req checkCodeReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	code, ok := codeString(req.Code)
	if !ok {
		return missingFields(c, []string{"verification_code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	verified, err := h.Svc.CheckVerificationCode(ctx, middleware.Claims(c), code)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "verification code accepted", echo.Map{"verified_token": verified})
}

// codeString accepts the code as a JSON string or integer.
func codeString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case float64:
		if t != float64(int64(t)) {
			return "", false
		}
		return strconv.FormatInt(int64(t), 10), true
	}
	return "", false
}

// ConfirmEmail confirms the address bound to a verified token.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.ConfirmEmail(ctx, middleware.Claims(c)); err != nil {
		return err
	}
	return success(c, http.StatusOK, "email confirmed", nil)
}

// ResetPassword sets a new password for the identity of a verified token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if req.NewPassword == "" {
		return missingFields(c, []string{"new_password"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.ResetPassword(ctx, middleware.Claims(c), req.NewPassword); err != nil {
		return err
	}
	return success(c, http.StatusOK, "password updated", nil)
}

// RequestConfirmationLink mails a signed confirmation link.
func (h *AuthHandler) RequestConfirmationLink(c echo.Context) error {
	email := c.QueryParam("email")
	if strings.TrimSpace(email) == "" {
		return missingFields(c, []string{"email"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.RequestConfirmationLink(ctx, email); err != nil {
		return err
	}
	return success(c, http.StatusOK, "confirmation link sent", nil)
}

// ConfirmEmailLink is the target of the mailed link.
func (h *AuthHandler) ConfirmEmailLink(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.ConfirmEmailLink(ctx, c.Param("token")); err != nil {
		return err
	}
	return success(c, http.StatusOK, "email confirmed", nil)
}
