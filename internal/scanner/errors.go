package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBaseURL is returned when a scan is started without a target URL.
	ErrEmptyBaseURL = errors.New("target URL is required")
	// ErrNoTargets is returned when the word list yields no paths.
	ErrNoTargets = errors.New("wordlist is empty or invalid")
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the registry is at capacity.
	ErrTooManySessions = errors.New("too many active sessions")
	// ErrRegistryClosed is returned by Start after Close.
	ErrRegistryClosed = errors.New("registry closed")
)

// ValidationError reports a rejected scan request. It is returned
// synchronously and the session is never created.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
