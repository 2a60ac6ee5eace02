// Package apperr provides the error kinds the gateway reports to its callers.
// The service layer returns these typed errors and the HTTP layer maps them
// to status codes in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindValidation indicates request fields that failed validation.
	KindValidation
	// KindBadRequest indicates a request that cannot be served with the current configuration,
	// such as an unknown provider or a missing API key.
	KindBadRequest
	// KindUpstream indicates a failed call to a geocoding provider.
	KindUpstream
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
	Details any    // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindInternal, KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	e := New(kind, message)
	e.Err = err

	return e
}

// WithOp sets the operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets the response details and returns the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Validation creates a validation error carrying the per-field messages.
func Validation(fields map[string][]string) *Error {
	return New(KindValidation, "Validation failed").WithDetails(fields)
}

// BadRequest wraps a configuration or request error, keeping its message.
func BadRequest(err error) *Error {
	return Wrap(KindBadRequest, err.Error(), err)
}

// Upstream wraps a provider failure. status is the upstream HTTP status.
func Upstream(err error, status int) *Error {
	return Wrap(KindUpstream, err.Error(), err).WithDetails(status)
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	return Wrap(KindInternal, "Internal server error", err)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
