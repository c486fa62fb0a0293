package ouraapi

import (
	"errors"
	"fmt"
)

// AuthError means the token was rejected. It is fatal to a refresh cycle and
// must never be retried automatically.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// RateLimitError is returned once the 429 retry budget is exhausted.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

// TimeoutError is returned once the timeout retry budget is exhausted.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %d attempts", e.Attempts)
}

// StatusError covers other non-2xx responses; callers treat it as transient.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.Endpoint)
}

// MalformedError wraps a payload that could not be decoded. The upstream
// shape is not under our control, so callers treat it as transient.
type MalformedError struct {
	Endpoint string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}
