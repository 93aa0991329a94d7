package rediskeyring

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/proxy-kit/relay-client-go/keyring"
	"github.com/proxy-kit/relay-client-go/keyring/keyringtest"
)

// TestRedisKeyring runs the conformance suite against a real Redis
// instance. Set REDIS_ADDR to enable; skipped otherwise.
func TestRedisKeyring(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis keyring tests")
	}

	keyringtest.RunKeyringTests(t, func(t *testing.T) keyring.Keyring {
		k, err := New(Config{RedisAddr: addr, KeyPrefix: "relay:test:" + uuid.NewString() + ":"})
		if err != nil {
			t.Fatalf("new redis keyring: %v", err)
		}
		t.Cleanup(func() { _ = k.Close() })
		return k
	})
}
