// Package softattest is a software implementation of attest.Attestor
// for development hosts and CI, where no secure element exists.
//
// Keys are in-memory ECDSA P-256 pairs. Attestation and assertion
// blobs are compact JWS documents (ES256) so a relay configured to
// accept software attestation can verify them against the public key
// carried in the attestation payload. This provides the full handshake
// shape without hardware trust; production apps use a platform-backed
// Attestor instead.
package softattest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/proxy-kit/relay-client-go/attest"
)

// Attestor holds software keys in memory, keyed by handle.
type Attestor struct {
	mu       sync.Mutex
	keys     map[string]*ecdsa.PrivateKey
	attested map[string]bool
	now      func() time.Time
}

func New() *Attestor {
	return &Attestor{
		keys:     make(map[string]*ecdsa.PrivateKey),
		attested: make(map[string]bool),
		now:      time.Now,
	}
}

func (a *Attestor) GenerateKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("softattest: generate key: %w", err)
	}
	keyID := uuid.NewString()
	a.mu.Lock()
	a.keys[keyID] = priv
	a.mu.Unlock()
	return keyID, nil
}

// attestationClaims is the JWS payload of an attestation blob. The
// embedded JWK lets the relay pin the public key for later assertions.
type attestationClaims struct {
	KeyID         string          `json:"key_id"`
	ChallengeHash string          `json:"challenge_hash"`
	PublicKey     json.RawMessage `json:"public_key"`
	IssuedAt      int64           `json:"iat"`
	Type          string          `json:"typ"`
}

// assertionClaims is the JWS payload of a per-request assertion blob.
type assertionClaims struct {
	KeyID    string `json:"key_id"`
	Digest   string `json:"digest"`
	IssuedAt int64  `json:"iat"`
	Type     string `json:"typ"`
}

func (a *Attestor) AttestKey(ctx context.Context, keyID string, challengeHash []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	priv, ok := a.keys[keyID]
	already := a.attested[keyID]
	if ok && !already {
		a.attested[keyID] = true
	}
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("softattest: unknown key: %s", keyID)
	}
	if already {
		return nil, errors.New("softattest: key already attested")
	}

	jwk := jose.JSONWebKey{Key: priv.Public(), KeyID: keyID, Algorithm: string(jose.ES256), Use: "sig"}
	jwkJSON, err := jwk.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("softattest: marshal jwk: %w", err)
	}
	payload, err := json.Marshal(attestationClaims{
		KeyID:         keyID,
		ChallengeHash: base64.StdEncoding.EncodeToString(challengeHash),
		PublicKey:     jwkJSON,
		IssuedAt:      a.now().Unix(),
		Type:          "software-attestation",
	})
	if err != nil {
		return nil, fmt.Errorf("softattest: marshal claims: %w", err)
	}
	return a.sign(keyID, priv, payload)
}

func (a *Attestor) GenerateAssertion(ctx context.Context, keyID string, digest []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	priv, ok := a.keys[keyID]
	attested := a.attested[keyID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("softattest: unknown key: %s", keyID)
	}
	if !attested {
		return nil, errors.New("softattest: key not yet attested")
	}

	payload, err := json.Marshal(assertionClaims{
		KeyID:    keyID,
		Digest:   base64.StdEncoding.EncodeToString(digest),
		IssuedAt: a.now().Unix(),
		Type:     "software-assertion",
	})
	if err != nil {
		return nil, fmt.Errorf("softattest: marshal claims: %w", err)
	}
	return a.sign(keyID, priv, payload)
}

func (a *Attestor) sign(keyID string, priv *ecdsa.PrivateKey, payload []byte) ([]byte, error) {
	opts := (&jose.SignerOptions{}).WithHeader("kid", keyID)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: priv}, opts)
	if err != nil {
		return nil, fmt.Errorf("softattest: create signer: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("softattest: sign: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("softattest: serialize jws: %w", err)
	}
	return []byte(compact), nil
}

// PublicKey returns the public half of a generated key, for tests and
// relays that pin software keys out of band.
func (a *Attestor) PublicKey(keyID string) (*ecdsa.PublicKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	priv, ok := a.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("softattest: unknown key: %s", keyID)
	}
	return &priv.PublicKey, nil
}

var _ attest.Attestor = (*Attestor)(nil)
