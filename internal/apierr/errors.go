// Package apierr defines the tagged domain-error sum type used across ZETA's
// endpoint flows. Endpoint code never panics or returns a bare error for an
// expected failure; it returns an *Error carrying one of the fixed Kinds
// below, and a single top-level handler maps Kind to an HTTP status code.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is a domain error category. The HTTP layer maps each Kind to exactly
// one status code; endpoint code never picks a status directly.
type Kind string

const (
	Validation       Kind = "validation"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	PermissionDenied Kind = "permission_denied"
	Unavailable      Kind = "unavailable"
	Internal         Kind = "internal"
)

// Error is the domain error type raised by every package under internal/.
// Message is the text returned to the client; for cryptographic failures it
// is deliberately vague (see cryptoutil and ticket) to avoid turning the API
// into a decryption oracle.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a domain error that carries an underlying cause for logging.
// Error() includes the cause; Message, the only text sent to clients, does
// not.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Cause returns the wrapped error, or nil.
func (e *Error) Cause() error { return e.cause }

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// StatusCode maps a Kind to the HTTP status code spec.md §6 assigns it.
func StatusCode(kind Kind) int {
	switch kind {
	case Validation:
		return 400
	case NotFound:
		return 404
	case Conflict:
		return 409
	case PermissionDenied:
		return 403
	case Unavailable:
		return 503
	case Internal:
		return 500
	default:
		return 500
	}
}
