package filekeyring

import (
	"testing"

	"github.com/proxy-kit/relay-client-go/keyring"
	"github.com/proxy-kit/relay-client-go/keyring/keyringtest"
)

func TestFileKeyring(t *testing.T) {
	keyringtest.RunKeyringTests(t, func(t *testing.T) keyring.Keyring {
		k, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("new keyring: %v", err)
		}
		return k
	})
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}
