package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrProviderDown,
		ErrUnauthorized,
		ErrForbidden,
		ErrRateLimit,
		ErrBadRequest,
		ErrUnexpectedStatus,
		ErrMalformedResponse,
	}

	for i, a := range sentinels {
		if a.Error() == "" {
			t.Fatalf("sentinel error %d must have a non-empty message", i)
		}
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel errors must be distinct: %v and %v", a, b)
			}
		}
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusInternalServerError, ErrUnexpectedStatus},
		{http.StatusBadGateway, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			err := fmt.Errorf("calling provider: %w", &StatusError{StatusCode: tt.status})
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("StatusCode() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()

	err := &StatusError{StatusCode: 502, Body: "bad gateway"}
	want := "provider returned unexpected status (HTTP 502): bad gateway"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("StatusCode of a plain error should be 0")
	}
}
