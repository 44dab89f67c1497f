// Package mmerr defines the error taxonomy shared across ingestion and
// query handling so the HTTP layer can pick a status code without
// re-deriving it from an underlying cause.
package mmerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure the way the ingestion and query paths need to
// report it to callers.
type Kind int

const (
	// Internal is an unexpected condition with no more specific kind.
	Internal Kind = iota
	// ClientInvalid covers malformed bodies, missing fields, unsafe
	// site IDs, and invalid period/step/interval values.
	ClientInvalid
	// OriginDenied means the request's Origin header did not exactly equal
	// any allowlist entry. The whole header value is compared (scheme,
	// host and port), so a bare-host entry such as "example.com" matches
	// no browser Origin.
	OriginDenied
	// RateLimited means the per-site token bucket rejected the request.
	RateLimited
	// PayloadTooLarge means the request body exceeded the configured
	// byte ceiling.
	PayloadTooLarge
	// BotDropped maps to 202 rather than an error status. The ingestion
	// orchestrator does not return it: a dropped bot event yields a nil
	// error.
	BotDropped
	// ExtensionUnavailable means a behavioral query ran in degraded mode
	// because the optional engine extension is not loaded.
	ExtensionUnavailable
	// StorageFailure means an insert or columnar export failed.
	StorageFailure
)

// Error wraps an underlying cause with a Kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode maps a Kind to the HTTP status spec.md §7 assigns it.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case ClientInvalid:
		return http.StatusBadRequest
	case OriginDenied:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case BotDropped:
		return http.StatusAccepted
	case ExtensionUnavailable:
		return http.StatusOK
	case StorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As is a thin re-export of errors.As for callers that don't want to
// import both packages just to type-assert an *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
