// Package keyring defines the secure key-value store contract the SDK
// uses to persist its session blob across process restarts.
//
// On a mobile device the implementation is expected to wrap the
// platform's secure per-app store (Keychain, Keystore). The SDK itself
// ships three implementations: memorykeyring (reference, no
// durability), filekeyring (0600 blobs under a private directory) and
// rediskeyring (for server-side or edge deployments of the SDK).
//
// All implementations must pass the conformance suite in keyringtest.
package keyring

import (
	"context"
	"errors"
)

// ErrItemNotFound is returned by Load when no value exists under the key.
// Absence is a normal state for callers loading optional blobs; they
// should branch on errors.Is rather than treat it as a failure.
var ErrItemNotFound = errors.New("keyring: item not found")

// Keyring is a minimal durable byte store scoped to the application.
//
// Values are opaque to the keyring. Save overwrites any existing value
// under the key. Delete of a missing key returns ErrItemNotFound so
// callers can distinguish "nothing to remove" from a backend failure.
type Keyring interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
