package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for provider operations.
var (
	// ErrProviderDown indicates the provider could not be reached or did not
	// answer in time.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrUnauthorized indicates the provider rejected the credentials (401).
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrForbidden indicates the credentials lack access to the model (403).
	ErrForbidden = errors.New("provider denied access")

	// ErrRateLimit indicates the provider returned a rate limit response (429).
	ErrRateLimit = errors.New("provider rate limited")

	// ErrBadRequest indicates the provider rejected the request payload (400).
	ErrBadRequest = errors.New("provider rejected request")

	// ErrUnexpectedStatus indicates any other non-success status code.
	ErrUnexpectedStatus = errors.New("provider returned unexpected status")

	// ErrMalformedResponse indicates a success status with a body that does
	// not carry a usable completion.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// StatusError is returned when the provider answers with a non-success
// HTTP status. It unwraps to the sentinel for its status class.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.Unwrap(), e.StatusCode)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.Unwrap(), e.StatusCode, e.Body)
}

// Unwrap returns the category sentinel for the status code.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusTooManyRequests:
		return ErrRateLimit
	default:
		return ErrUnexpectedStatus
	}
}

// StatusCode extracts the HTTP status code from err, or 0 when err does not
// carry one.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
