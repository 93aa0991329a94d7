package tokeninfo

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExpiryExtractsExpClaim(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"exp": exp.Unix(), "sub": "sess"})

	got, err := Expiry(token)
	if err != nil {
		t.Fatalf("expiry failed: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
}

func TestExpiryRejectsOpaqueToken(t *testing.T) {
	if _, err := Expiry("not-a-jwt"); !errors.Is(err, ErrNotAJWT) {
		t.Fatalf("expected ErrNotAJWT, got %v", err)
	}
}

func TestExpiryRejectsTokenWithoutExp(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "sess"})
	if _, err := Expiry(token); err == nil {
		t.Fatal("expected error for missing exp claim")
	}
}
