// Package session holds the relay-issued bearer session and its single
// authoritative in-memory store.
//
// A Session is a short-lived credential produced by the attestation
// handshake. The Store owns the live instance; a serialized mirror is
// written to a keyring.Keyring purely as an optimization against
// process restarts. Once a session is loaded into memory, the durable
// copy is never consulted again for the remainder of the process.
package session

import (
	"errors"
	"time"
)

// StorageKey is the fixed keyring key under which the serialized
// session blob is persisted.
const StorageKey = "relay.session"

// ErrSessionExpired indicates there is no current session, or the
// current session's expiry has passed. Callers recover by running the
// attestation handshake, not by retrying the read.
var ErrSessionExpired = errors.New("session: expired")

// Session is the relay-issued bearer credential. Sessions are
// replaced, never mutated in place.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AppID     string    `json:"app_id"`
	// KeyID is the attested hardware key handle bound to this session.
	// Empty when the relay issued the session without key binding.
	KeyID string `json:"key_id,omitempty"`
}

// IsValid reports whether the session can authorize a request at the
// given instant: a non-empty token whose expiry is still in the future.
func (s Session) IsValid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}
