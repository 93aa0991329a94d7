// Package attest defines the hardware attestation capability the SDK
// consumes, plus the observable status of an attestation run.
//
// The primitive is opaque: keys live behind the implementation (Secure
// Enclave, StrongBox, TPM, or the software fallback in softattest) and
// only opaque handles and signature blobs cross the boundary. Three
// operations exist:
//
//	GenerateKey       -> new hardware-backed key handle
//	AttestKey         -> one-time attestation of a key against a challenge hash
//	GenerateAssertion -> per-request signature over a data hash
//
// AttestKey is valid exactly once per key, at enrollment. Every later
// signed request uses GenerateAssertion.
package attest

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported indicates the environment cannot produce
// hardware-backed keys (e.g. a simulator or a host without a secure
// element). UIs should tell the user to run on a real device.
var ErrUnsupported = errors.New("attest: hardware attestation unsupported in this environment")

// Attestor is the device attestation primitive.
//
// Implementations bridge the platform's callback-based hardware APIs
// into blocking calls; each operation honors ctx cancellation.
type Attestor interface {
	// GenerateKey creates a new attestable key and returns its opaque handle.
	GenerateKey(ctx context.Context) (keyID string, err error)
	// AttestKey produces an attestation blob binding keyID to the
	// challenge hash. Only valid for a key's first use.
	AttestKey(ctx context.Context, keyID string, challengeHash []byte) ([]byte, error)
	// GenerateAssertion signs the digest with the previously attested key.
	GenerateAssertion(ctx context.Context, keyID string, digest []byte) ([]byte, error)
}

// State enumerates the phases of an attestation run.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a point-in-time observation of an attestation run. Err is
// non-nil only when State is StateFailed. Status is recomputed fresh
// each process start; it is never persisted.
type Status struct {
	State State
	Err   error
}

func (s Status) String() string {
	if s.State == StateFailed && s.Err != nil {
		return fmt.Sprintf("%s: %v", s.State, s.Err)
	}
	return s.State.String()
}
