package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/maintenance-auth/internal/service"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func success(c echo.Context, code int, message string, data any) error {
	if data == nil {
		data = echo.Map{}
	}
	return c.JSON(code, envelope{Status: "success", Message: message, Data: data})
}

func failure(c echo.Context, code int, message string, data any) error {
	if data == nil {
		data = echo.Map{}
	}
	return c.JSON(code, envelope{Status: "error", Message: message, Data: data})
}

// ErrorHandler renders service and echo errors as an error envelope.  Causes
// are logged, never returned to the client.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var data any

	var se *service.Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &se):
		code = se.Kind.HTTPStatus()
		message = se.Message
		if se.Data != nil {
			data = se.Data
		}
		if se.Kind == service.KindInternal || se.Kind == service.KindStorage || se.Kind == service.KindDependency {
			log.Errorf("%s %s: %v", c.Request().Method, c.Path(), se)
		}
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	default:
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = failure(c, code, message, data)
	}
	if werr != nil {
		log.Errorf("writing error response: %v", werr)
	}
}

// missingFields is the 400 returned when required body fields are blank.
func missingFields(c echo.Context, missing []string) error {
	return failure(c, http.StatusBadRequest, "missing fields in request", echo.Map{"missing": missing})
}

// invalidBody is the 400 returned when the body cannot be decoded.
func invalidBody(c echo.Context) error {
	return failure(c, http.StatusBadRequest, "invalid JSON body", nil)
}
