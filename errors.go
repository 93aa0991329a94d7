package relayclient

import (
	"errors"

	"github.com/proxy-kit/relay-client-go/internal/transport"
	"github.com/proxy-kit/relay-client-go/session"
)

// Sentinel errors surfaced by the client. Transport- and session-level
// sentinels are re-exported here so callers only need errors.Is against
// this package.
var (
	// ErrNotConfigured indicates required configuration (base URL, app
	// id) was absent at construction time.
	ErrNotConfigured = errors.New("relayclient: not configured")
	// ErrSessionExpired indicates no valid session is held. The client
	// recovers from this internally via re-attestation; callers see it
	// only when recovery also failed.
	ErrSessionExpired = session.ErrSessionExpired
	// ErrUnauthorized maps HTTP 401 after the client's single
	// re-attestation retry was also rejected.
	ErrUnauthorized = transport.ErrUnauthorized
	// ErrAppNotFound maps HTTP 404: the app id is unknown to the relay.
	ErrAppNotFound = transport.ErrAppNotFound
	// ErrInvalidAPIKey indicates the relay's upstream provider
	// credential was rejected.
	ErrInvalidAPIKey = transport.ErrInvalidAPIKey
	// ErrInvalidResponse indicates an undecodable relay response.
	ErrInvalidResponse = transport.ErrInvalidResponse
)

// Structured errors passed through verbatim so applications can build
// their own backoff and UI on top.
type (
	// RateLimitedError maps HTTP 429 with its Retry-After hint.
	RateLimitedError = transport.RateLimitedError
	// ProviderError is the relay's structured {code, message} envelope.
	ProviderError = transport.ProviderError
	// NetworkError wraps a failure below the HTTP status level.
	NetworkError = transport.NetworkError
)

// ConfigurationError reports invalid construction-time configuration.
// It always fails fast, before any network activity.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "relayclient: configuration error: " + e.Detail
}

// AttestationError reports a failure of the attestation primitive or
// handshake. Reason is an actionable human-readable cause; in
// particular it distinguishes "not a real device" from other failures
// (check errors.Is(err, attest.ErrUnsupported)).
type AttestationError struct {
	Reason string
	Err    error
}

func (e *AttestationError) Error() string {
	if e.Err != nil {
		return "relayclient: attestation failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "relayclient: attestation failed: " + e.Reason
}

func (e *AttestationError) Unwrap() error { return e.Err }
