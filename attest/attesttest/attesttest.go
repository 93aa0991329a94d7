// Package attesttest provides a scripted attest.Attestor for tests.
//
// The zero-configured Attestor follows a deterministic happy path:
// sequential key handles and predictable blobs. Individual operations
// can be overridden per test, and call counts are recorded so tests can
// assert how often the hardware boundary was crossed.
package attesttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/proxy-kit/relay-client-go/attest"
)

// Attestor is a configurable fake. Override the *Func fields to script
// failures; leave them nil for the deterministic happy path.
type Attestor struct {
	GenerateKeyFunc       func(ctx context.Context) (string, error)
	AttestKeyFunc         func(ctx context.Context, keyID string, challengeHash []byte) ([]byte, error)
	GenerateAssertionFunc func(ctx context.Context, keyID string, digest []byte) ([]byte, error)

	mu             sync.Mutex
	keyCount       int
	attestCalls    int
	assertionCalls int
}

func New() *Attestor {
	return &Attestor{}
}

func (a *Attestor) GenerateKey(ctx context.Context) (string, error) {
	a.mu.Lock()
	a.keyCount++
	n := a.keyCount
	fn := a.GenerateKeyFunc
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return fmt.Sprintf("test-key-%d", n), nil
}

func (a *Attestor) AttestKey(ctx context.Context, keyID string, challengeHash []byte) ([]byte, error) {
	a.mu.Lock()
	a.attestCalls++
	fn := a.AttestKeyFunc
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx, keyID, challengeHash)
	}
	return []byte("attestation-blob:" + keyID), nil
}

func (a *Attestor) GenerateAssertion(ctx context.Context, keyID string, digest []byte) ([]byte, error) {
	a.mu.Lock()
	a.assertionCalls++
	fn := a.GenerateAssertionFunc
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx, keyID, digest)
	}
	return append([]byte("assertion-blob:"), digest...), nil
}

// GenerateKeyCalls reports how many keys were requested.
func (a *Attestor) GenerateKeyCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.keyCount
}

// AttestKeyCalls reports how many attestations were requested.
func (a *Attestor) AttestKeyCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attestCalls
}

// GenerateAssertionCalls reports how many assertions were requested.
func (a *Attestor) GenerateAssertionCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.assertionCalls
}

var _ attest.Attestor = (*Attestor)(nil)
