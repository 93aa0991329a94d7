// Package memorykeyring is the in-memory reference implementation of
// keyring.Keyring. It provides no durability across process restarts
// and exists for tests and single-shot tooling.
package memorykeyring

import (
	"context"
	"sync"

	"github.com/proxy-kit/relay-client-go/keyring"
)

// Keyring is a thread-safe in-memory keyring.
type Keyring struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func New() *Keyring {
	return &Keyring{items: make(map[string][]byte)}
}

func (k *Keyring) Save(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.items[key] = append([]byte(nil), value...)
	return nil
}

func (k *Keyring) Load(ctx context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.items[key]
	if !ok {
		return nil, keyring.ErrItemNotFound
	}
	return append([]byte(nil), v...), nil
}

func (k *Keyring) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.items[key]; !ok {
		return keyring.ErrItemNotFound
	}
	delete(k.items, key)
	return nil
}

func (k *Keyring) Exists(ctx context.Context, key string) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.items[key]
	return ok, nil
}

var _ keyring.Keyring = (*Keyring)(nil)
