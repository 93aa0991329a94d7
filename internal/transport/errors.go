package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized maps HTTP 401. The client layer treats it as a
	// session that the relay no longer accepts.
	ErrUnauthorized = errors.New("relay: unauthorized")
	// ErrAppNotFound maps HTTP 404 on relay endpoints: the configured
	// app id is unknown to the relay.
	ErrAppNotFound = errors.New("relay: app not found")
	// ErrInvalidAPIKey indicates the relay rejected its upstream
	// provider credential. Nothing the device can do; the developer
	// must fix the relay's key configuration.
	ErrInvalidAPIKey = errors.New("relay: invalid provider api key")
	// ErrInvalidResponse indicates a response that could not be decoded
	// into the expected shape.
	ErrInvalidResponse = errors.New("relay: invalid response")
)

// RateLimitedError maps HTTP 429. The SDK never retries on rate limits;
// the structured retry hint is passed through for the application's own
// backoff.
type RateLimitedError struct {
	// RetryAfter is the server-suggested wait in seconds, 0 when the
	// Retry-After header was absent.
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("relay: rate limited (retry after %ds)", e.RetryAfter)
	}
	return "relay: rate limited"
}

// ProviderError is a structured error envelope forwarded verbatim from
// the relay or the upstream provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("relay: provider error %s: %s", e.Code, e.Message)
}

// NetworkError wraps a transport-level failure (DNS, dial, TLS, body
// read) where no HTTP status was obtained.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "relay: network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }
