// Package filekeyring stores keyring values as individual files under a
// private directory. Files are written 0600 inside a 0700 directory and
// replaced atomically via rename, so a crashed save never leaves a
// half-written blob behind.
//
// This backend is intended for CLI tools and development hosts where no
// OS secure store is available. It does not encrypt values at rest.
package filekeyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/proxy-kit/relay-client-go/keyring"
)

// Keyring persists values as files under dir.
type Keyring struct {
	dir string
}

// New creates the backing directory if needed and returns a Keyring
// rooted at dir.
func New(dir string) (*Keyring, error) {
	if dir == "" {
		return nil, errors.New("filekeyring: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("filekeyring: create dir: %w", err)
	}
	return &Keyring{dir: dir}, nil
}

// path maps an arbitrary key to a filesystem-safe file name.
func (k *Keyring) path(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(k.dir, name+".blob")
}

func (k *Keyring) Save(ctx context.Context, key string, value []byte) error {
	dst := k.path(key)
	tmp, err := os.CreateTemp(k.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filekeyring: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("filekeyring: chmod: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("filekeyring: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filekeyring: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("filekeyring: rename: %w", err)
	}
	return nil
}

func (k *Keyring) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(k.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, keyring.ErrItemNotFound
		}
		return nil, fmt.Errorf("filekeyring: read: %w", err)
	}
	return b, nil
}

func (k *Keyring) Delete(ctx context.Context, key string) error {
	if err := os.Remove(k.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keyring.ErrItemNotFound
		}
		return fmt.Errorf("filekeyring: remove: %w", err)
	}
	return nil
}

func (k *Keyring) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(k.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("filekeyring: stat: %w", err)
	}
	return true, nil
}

var _ keyring.Keyring = (*Keyring)(nil)
