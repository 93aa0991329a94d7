// Package signing builds the per-request signature that binds each
// outgoing API call to a specific attested key.
//
// The canonical string and the header names are a wire contract with
// the relay; changing either breaks server-side verification.
package signing

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/proxy-kit/relay-client-go/attest"
)

// Header names carrying the signature fields on signed requests.
const (
	HeaderTimestamp = "X-Request-Timestamp"
	HeaderNonce     = "X-Request-Nonce"
	HeaderSignature = "X-Request-Signature"
	HeaderPlatform  = "X-Platform"
	HeaderKeyID     = "X-Key-Id"
)

// DefaultPlatform is the platform tag attached to signed requests.
const DefaultPlatform = "go"

// Signature is the set of values emitted as headers on one signed
// request. Created fresh per call, never stored.
type Signature struct {
	Timestamp int64
	Nonce     string
	Signature string
	Platform  string
	KeyID     string
}

// Headers renders the signature as its fixed header set.
func (s Signature) Headers() http.Header {
	h := http.Header{}
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderNonce, s.Nonce)
	h.Set(HeaderSignature, s.Signature)
	h.Set(HeaderPlatform, s.Platform)
	h.Set(HeaderKeyID, s.KeyID)
	return h
}

// CanonicalString builds the newline-joined string that is hashed and
// signed: uppercased method, path, Unix seconds, base64 nonce, and the
// lowercase-hex SHA-256 of the body (empty string when there is no
// body). Byte-identical output for identical inputs is required for
// relay-side verification.
func CanonicalString(method, path string, ts int64, nonce string, body []byte) string {
	bodyHash := ""
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		bodyHash = hex.EncodeToString(sum[:])
	}
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		strconv.FormatInt(ts, 10),
		nonce,
		bodyHash,
	}, "\n")
}

// Option configures a Signer.
type Option func(*Signer)

// WithPlatform overrides the platform tag.
func WithPlatform(tag string) Option {
	return func(s *Signer) { s.platform = tag }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithNonceSource overrides nonce generation. Intended for tests.
func WithNonceSource(fn func() (string, error)) Option {
	return func(s *Signer) { s.nonce = fn }
}

// Signer produces request signatures via the attestation primitive.
type Signer struct {
	att      attest.Attestor
	platform string
	now      func() time.Time
	nonce    func() (string, error)
}

func New(att attest.Attestor, opts ...Option) *Signer {
	s := &Signer{att: att, platform: DefaultPlatform, now: time.Now, nonce: randomNonce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// randomNonce returns 16 cryptographically random bytes, base64-encoded.
// Nonces are never reused; the relay rejects replays.
func randomNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("signing: nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}

// Sign produces a fresh Signature over (method, path, body) bound to
// keyID. The SHA-256 of the canonical string is handed to the
// attestation primitive's assertion operation.
func (s *Signer) Sign(ctx context.Context, keyID, method, path string, body []byte) (Signature, error) {
	nonce, err := s.nonce()
	if err != nil {
		return Signature{}, err
	}
	ts := s.now().Unix()

	canonical := CanonicalString(method, path, ts, nonce, body)
	digest := sha256.Sum256([]byte(canonical))

	blob, err := s.att.GenerateAssertion(ctx, keyID, digest[:])
	if err != nil {
		return Signature{}, fmt.Errorf("signing: assertion: %w", err)
	}

	return Signature{
		Timestamp: ts,
		Nonce:     nonce,
		Signature: base64.StdEncoding.EncodeToString(blob),
		Platform:  s.platform,
		KeyID:     keyID,
	}, nil
}
