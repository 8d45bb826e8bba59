// Package service holds the authentication workflows.  Every failure leaving
// the package is an *Error whose Kind decides the HTTP status.
package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindDependency
	KindStorage
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindConflict:     "conflict",
	KindNotFound:     "not_found",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindDependency:   "dependency_failure",
	KindStorage:      "storage",
}

func (k Kind) String() string { return kindNames[k] }

// HTTPStatus maps the kind to a response code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindDependency:
		return http.StatusServiceUnavailable
	case KindStorage:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.  Message is safe to show to clients; Err
// keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func validation(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func unauthorized(err error, msg string) *Error { return newError(KindUnauthorized, err, "%s", msg) }

func internal(err error, msg string) *Error { return newError(KindInternal, err, "%s", msg) }

// storage wraps a datastore failure; the engine message stays in Err.
func storage(err error) *Error {
	return newError(KindStorage, err, "could not save changes")
}
