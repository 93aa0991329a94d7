package signing

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/proxy-kit/relay-client-go/attest/attesttest"
)

func TestCanonicalStringIsDeterministic(t *testing.T) {
	body := []byte(`{"messages":[{"content":"Hi","role":"user"}],"model":"gpt-4"}`)
	nonce := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))

	first := CanonicalString("post", "/v1/proxy/OPENAI/chat", 1767225600, nonce, body)
	for i := 0; i < 10; i++ {
		if got := CanonicalString("post", "/v1/proxy/OPENAI/chat", 1767225600, nonce, body); got != first {
			t.Fatalf("canonical string not deterministic:\n%q\n%q", got, first)
		}
	}

	// Shape: METHOD\npath\nts\nnonce\nbodyhash, method uppercased.
	sum := sha256.Sum256(body)
	want := "POST\n/v1/proxy/OPENAI/chat\n1767225600\n" + nonce + "\n"
	if got := first[:len(want)]; got != want {
		t.Fatalf("canonical prefix mismatch:\n%q\n%q", got, want)
	}
	if first[len(want):] != hexOf(sum[:]) {
		t.Fatalf("body hash mismatch")
	}
}

func hexOf(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0xf])
	}
	return string(out)
}

func TestCanonicalStringEmptyBody(t *testing.T) {
	got := CanonicalString("GET", "/v1/x", 100, "n", nil)
	if got != "GET\n/v1/x\n100\nn\n" {
		t.Fatalf("unexpected canonical string for empty body: %q", got)
	}
}

func TestSignHashesCanonicalString(t *testing.T) {
	att := attesttest.New()
	var gotDigest []byte
	att.GenerateAssertionFunc = func(ctx context.Context, keyID string, digest []byte) ([]byte, error) {
		gotDigest = append([]byte(nil), digest...)
		return []byte("sig"), nil
	}

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(att,
		WithClock(func() time.Time { return fixed }),
		WithNonceSource(func() (string, error) { return "bm9uY2U=", nil }),
	)

	body := []byte(`{"a":1}`)
	sig, err := s.Sign(context.Background(), "key-1", "POST", "/v1/proxy/OPENAI/chat", body)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	canonical := CanonicalString("POST", "/v1/proxy/OPENAI/chat", fixed.Unix(), "bm9uY2U=", body)
	want := sha256.Sum256([]byte(canonical))
	if string(gotDigest) != string(want[:]) {
		t.Fatalf("assertion digest is not the canonical string hash")
	}

	if sig.KeyID != "key-1" || sig.Platform != DefaultPlatform || sig.Timestamp != fixed.Unix() {
		t.Fatalf("unexpected signature fields: %+v", sig)
	}
	if sig.Signature != base64.StdEncoding.EncodeToString([]byte("sig")) {
		t.Fatalf("signature not base64 of assertion blob")
	}
}

func TestSignatureHeaders(t *testing.T) {
	sig := Signature{Timestamp: 42, Nonce: "n", Signature: "s", Platform: "go", KeyID: "k"}
	h := sig.Headers()

	want := map[string]string{
		HeaderTimestamp: "42",
		HeaderNonce:     "n",
		HeaderSignature: "s",
		HeaderPlatform:  "go",
		HeaderKeyID:     "k",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Fatalf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestNoncesAreFreshPerCall(t *testing.T) {
	att := attesttest.New()
	s := New(att)

	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		sig, err := s.Sign(context.Background(), "key-1", "POST", "/p", nil)
		if err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		raw, err := base64.StdEncoding.DecodeString(sig.Nonce)
		if err != nil {
			t.Fatalf("nonce not base64: %v", err)
		}
		if len(raw) != 16 {
			t.Fatalf("nonce length %d, want 16", len(raw))
		}
		if seen[sig.Nonce] {
			t.Fatalf("nonce reused: %s", sig.Nonce)
		}
		seen[sig.Nonce] = true
	}
}
