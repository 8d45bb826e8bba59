package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/maintenance-auth/internal/service"
)

func render(err error) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(err, c)
	return rec
}

func TestErrorHandler(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		rec := render(&service.Error{
			Kind:    service.KindValidation,
			Message: "invalid sign-up data",
			Data:    map[string]any{"invalid": map[string]string{"email": "bad"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"status":"error","message":"invalid sign-up data","data":{"invalid":{"email":"bad"}}}`, rec.Body.String())
	})

	t.Run("storage cause is hidden", func(t *testing.T) {
		rec := render(&service.Error{
			Kind:    service.KindStorage,
			Message: "could not save changes",
			Err:     errors.New("UNIQUE constraint failed: users.email"),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.NotContains(t, rec.Body.String(), "UNIQUE")
	})

	t.Run("echo error", func(t *testing.T) {
		rec := render(echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"status":"error","message":"rate limit exceeded","data":{}}`, rec.Body.String())
	})

	t.Run("unclassified", func(t *testing.T) {
		rec := render(errors.New("sql: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestCodeString(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"123456", "123456", true},
		{float64(654321), "654321", true},
		{float64(12.5), "", false},
		{"  ", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tc := range cases {
		got, ok := codeString(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}
