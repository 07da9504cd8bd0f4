// Package apperr defines the error taxonomy shared by every service entry
// point. Handlers map these to HTTP statuses; callers use errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed, missing or oversized input. Not retryable.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization marks a caller lacking the required role or membership.
	ErrAuthorization = errors.New("authorization error")
	// ErrNotFound marks a missing conversation, message or user.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a concurrent-mutation collision the retry policy could
	// not resolve. The whole operation may be retried.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks a storage or broadcast timeout. Retryable with backoff.
	ErrTransient = errors.New("transient infrastructure error")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Authorization(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Transient wraps an infrastructure error so callers can tell it apart from
// domain failures. The cause stays reachable through errors.Is/As.
func Transient(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, cause)
}
