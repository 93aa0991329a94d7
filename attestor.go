package relayclient

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/proxy-kit/relay-client-go/attest"
	"github.com/proxy-kit/relay-client-go/internal/tokeninfo"
	"github.com/proxy-kit/relay-client-go/internal/transport"
	"github.com/proxy-kit/relay-client-go/session"
)

const (
	challengePath = "/v1/attestation/challenge"
	verifyPath    = "/v1/attestation/verify"
)

// Wire shapes of the attestation endpoints. Field names are a fixed
// contract with the relay.
type challengeRequest struct {
	AppID string `json:"appId"`
}

type challengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type verifyRequest struct {
	AppID       string `json:"appId"`
	KeyID       string `json:"keyId"`
	Attestation string `json:"attestation"`
	Challenge   string `json:"challenge"`
}

type verifyResponse struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// flight is one in-progress attestation run shared by all concurrent
// callers. err is set before done is closed.
type flight struct {
	done chan struct{}
	err  error
}

// Coordinator runs the challenge/attest/verify protocol that turns a
// device attestation into a relay session, and publishes the status of
// the run to subscribers.
//
// Concurrent Attest calls coalesce into a single in-flight run; every
// caller receives that run's result. The coordinator never retries on
// its own.
type Coordinator struct {
	appID    string
	att      attest.Attestor
	tp       *transport.Transport
	store    *session.Store
	verifier tokeninfo.Verifier
	log      *slog.Logger

	mu       sync.Mutex
	status   attest.Status
	inflight *flight

	obsMu     sync.Mutex
	observers map[int]chan attest.Status
	nextObs   int
}

func newCoordinator(appID string, att attest.Attestor, tp *transport.Transport, store *session.Store, verifier tokeninfo.Verifier, log *slog.Logger) *Coordinator {
	return &Coordinator{
		appID:     appID,
		att:       att,
		tp:        tp,
		store:     store,
		verifier:  verifier,
		log:       log,
		observers: make(map[int]chan attest.Status),
	}
}

// Status returns the current attestation status. Status is recomputed
// each process start; a restored durable session leaves it at
// StateNotStarted until the next run.
func (c *Coordinator) Status() attest.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers an observer for status transitions. The returned
// function unsubscribes and closes the channel; no notification is
// delivered after it returns. Slow observers drop updates rather than
// block attestation.
func (c *Coordinator) Subscribe() (<-chan attest.Status, func()) {
	ch := make(chan attest.Status, 16)
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = ch
	c.obsMu.Unlock()

	unsubscribe := func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		if _, ok := c.observers[id]; !ok {
			return
		}
		delete(c.observers, id)
		close(ch)
	}
	return ch, unsubscribe
}

func (c *Coordinator) setStatus(st attest.Status) {
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()

	c.obsMu.Lock()
	for _, ch := range c.observers {
		select {
		case ch <- st:
		default:
		}
	}
	c.obsMu.Unlock()
}

// AttestIfNeeded runs the attestation protocol unless a valid session
// is already held, in which case it returns immediately.
func (c *Coordinator) AttestIfNeeded(ctx context.Context) error {
	if c.store.HasValidSession() {
		return nil
	}
	return c.Attest(ctx)
}

// Attest runs the full protocol: challenge, key generation, key
// attestation, verification, session persistence. When a run is already
// in flight the call joins it and returns its result.
func (c *Coordinator) Attest(ctx context.Context) error {
	c.mu.Lock()
	if f := c.inflight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	c.setStatus(attest.Status{State: attest.StateInProgress})
	err := c.run(ctx)
	if err != nil {
		c.setStatus(attest.Status{State: attest.StateFailed, Err: err})
	} else {
		c.setStatus(attest.Status{State: attest.StateCompleted})
	}

	c.mu.Lock()
	f.err = err
	c.inflight = nil
	c.mu.Unlock()
	close(f.done)
	return err
}

func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()
	c.log.DebugContext(ctx, "attest.start", slog.String("app_id", c.appID))

	var chal challengeResponse
	if err := c.post(ctx, challengePath, challengeRequest{AppID: c.appID}, &chal); err != nil {
		c.log.DebugContext(ctx, "attest.challenge.fail", slog.String("err", err.Error()))
		return err
	}

	keyID, err := c.att.GenerateKey(ctx)
	if err != nil {
		if errors.Is(err, attest.ErrUnsupported) {
			return &AttestationError{Reason: "hardware keys unavailable, run on a physical device", Err: err}
		}
		return &AttestationError{Reason: "key generation failed", Err: err}
	}

	// The relay hashes the raw UTF-8 challenge bytes on its side;
	// anything else fails verification.
	chalHash := sha256.Sum256([]byte(chal.Challenge))
	blob, err := c.att.AttestKey(ctx, keyID, chalHash[:])
	if err != nil {
		return &AttestationError{Reason: "key attestation failed", Err: err}
	}

	var verified verifyResponse
	req := verifyRequest{
		AppID:       c.appID,
		KeyID:       keyID,
		Attestation: base64.StdEncoding.EncodeToString(blob),
		Challenge:   chal.Challenge,
	}
	if err := c.post(ctx, verifyPath, req, &verified); err != nil {
		c.log.DebugContext(ctx, "attest.verify.fail", slog.String("err", err.Error()))
		return err
	}

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, verified.SessionToken); err != nil {
			return &AttestationError{Reason: "session token failed verification", Err: err}
		}
	}

	expiresAt := verified.ExpiresAt
	if expiresAt.IsZero() {
		// Some relay deployments omit expiresAt and rely on the token's
		// own exp claim.
		if exp, expErr := tokeninfo.Expiry(verified.SessionToken); expErr == nil {
			expiresAt = exp
		}
	}

	sess := session.Session{
		Token:     verified.SessionToken,
		ExpiresAt: expiresAt,
		AppID:     c.appID,
		KeyID:     keyID,
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return err
	}

	c.log.DebugContext(ctx, "attest.done",
		slog.String("key_id", keyID),
		slog.Duration("dur", time.Since(start)),
	)
	return nil
}

func (c *Coordinator) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.tp.Do(ctx, http.MethodPost, path, http.Header{}, body, out)
}
