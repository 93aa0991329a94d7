package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/proxy-kit/relay-client-go/keyring"
)

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the slog logger used by the store. If not provided,
// slog.Default() is used.
func WithLogger(l *slog.Logger) StoreOption {
	return func(c *storeConfig) { c.logger = l }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) { c.now = now }
}

// Store is the single authoritative holder of the current Session.
//
// Every read and mutation of the in-memory session goes through one
// RWMutex so no caller can observe a partially written session. The
// keyring mirror is best-effort: save failures are surfaced but do not
// roll back the in-memory replacement, and clear failures are only
// logged.
type Store struct {
	mu   sync.RWMutex
	cur  *Session
	ring keyring.Keyring
	log  *slog.Logger
	now  func() time.Time
}

// NewStore constructs a Store backed by ring and attempts to adopt a
// previously persisted session. A durable copy that is expired at load
// time is deleted rather than adopted. Load and delete failures are
// swallowed: absence of a session is a normal state, not an error.
func NewStore(ctx context.Context, ring keyring.Keyring, opts ...StoreOption) *Store {
	cfg := &storeConfig{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Store{ring: ring, log: cfg.logger, now: cfg.now}
	s.loadInitial(ctx)
	return s
}

func (s *Store) loadInitial(ctx context.Context) {
	b, err := s.ring.Load(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, keyring.ErrItemNotFound) {
			s.log.DebugContext(ctx, "session.load.fail", slog.String("err", err.Error()))
		}
		return
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		s.log.DebugContext(ctx, "session.load.corrupt", slog.String("err", err.Error()))
		s.deleteDurable(ctx)
		return
	}
	if !sess.IsValid(s.now()) {
		// Garbage-collect the stale durable copy.
		s.log.DebugContext(ctx, "session.load.stale")
		s.deleteDurable(ctx)
		return
	}
	s.mu.Lock()
	s.cur = &sess
	s.mu.Unlock()
	s.log.DebugContext(ctx, "session.load.ok")
}

func (s *Store) deleteDurable(ctx context.Context) {
	if err := s.ring.Delete(ctx, StorageKey); err != nil && !errors.Is(err, keyring.ErrItemNotFound) {
		s.log.DebugContext(ctx, "session.durable.delete.fail", slog.String("err", err.Error()))
	}
}

// GetToken returns the bearer token of the current session, or
// ErrSessionExpired when there is none or it has lapsed. It does not
// attempt recovery itself.
func (s *Store) GetToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil || !s.cur.IsValid(s.now()) {
		return "", ErrSessionExpired
	}
	return s.cur.Token, nil
}

// Current returns a copy of the full current session, applying the same
// validity check as GetToken. Callers that need the bound KeyID use
// this instead of GetToken.
func (s *Store) Current(ctx context.Context) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil || !s.cur.IsValid(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return *s.cur, nil
}

// HasValidSession reports whether a valid session is currently held.
func (s *Store) HasValidSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil && s.cur.IsValid(s.now())
}

// Save atomically replaces the in-memory session and mirrors it to the
// keyring. A keyring failure is returned to the caller, but the
// in-memory replacement stands: in-memory state is authoritative for
// the remainder of the process.
func (s *Store) Save(ctx context.Context, sess Session) error {
	s.mu.Lock()
	cp := sess
	s.cur = &cp
	s.mu.Unlock()

	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.ring.Save(ctx, StorageKey, b); err != nil {
		s.log.WarnContext(ctx, "session.durable.save.fail", slog.String("err", err.Error()))
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// Clear removes the in-memory session and deletes the durable copy.
// Clearing always succeeds from the caller's perspective; keyring
// errors are logged only.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	s.deleteDurable(ctx)
}
