package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies one adapter's failure. The fallback engine records
// the kind per source and moves on; kinds never abort a chain.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrRateLimit   ErrorKind = "rate_limit"
	ErrAuth        ErrorKind = "auth"
	ErrNotFound    ErrorKind = "not_found"
	ErrTransport   ErrorKind = "transport"
	ErrDecode      ErrorKind = "decode"
	ErrCircuitOpen ErrorKind = "circuit_open"
)

// SourceError is one provider's classified failure.
type SourceError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// newError builds a classified SourceError.
func newError(provider string, kind ErrorKind, format string, args ...any) *SourceError {
	return &SourceError{Provider: provider, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report as transport.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrTransport
}

// Reason renders the per-source reason string stored in
// AllSourcesFailedError maps: "<kind>: <message>".
func Reason(err error) string {
	var se *SourceError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: %v", se.Kind, se.Err)
	}
	return err.Error()
}

// classifyStatus maps an upstream HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransport
	}
}

// classifyTransport maps a client.Do failure to an error kind.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrTransport
}
