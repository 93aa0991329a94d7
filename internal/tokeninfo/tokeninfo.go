// Package tokeninfo inspects relay-issued session tokens.
//
// The relay's session token is opaque to the SDK in general, but when
// it happens to be a JWT two extra capabilities become available:
// deriving the session expiry from the exp claim when the verify
// response omits one, and optionally verifying the token signature
// against the relay's JWKS before trusting it.
package tokeninfo

import (
	"context"
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAJWT indicates the token could not be parsed as a JWT at all.
// Callers fall back to the expiry supplied by the relay.
var ErrNotAJWT = errors.New("tokeninfo: token is not a jwt")

// Expiry extracts the exp claim from a JWT session token without
// verifying its signature. The caller trusts the relay that issued the
// token over the channel it arrived on; this is a freshness hint, not
// an authenticity check.
func Expiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNotAJWT, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("tokeninfo: token has no exp claim")
	}
	return exp.Time, nil
}

// Verifier checks the authenticity of a session token. Implementations
// return nil for a token the client may trust.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Config controls JWT verification behavior.
type Config struct {
	AllowedAlgs []string
	Leeway      time.Duration
	// Issuer, when non-empty, is enforced against the iss claim.
	Issuer string
}

// DefaultConfig returns a Config with safe algorithm + leeway defaults.
func DefaultConfig() *Config {
	return &Config{AllowedAlgs: []string{"RS256", "ES256", "EdDSA"}, Leeway: 60 * time.Second}
}

type jwksVerifier struct {
	cfg     *Config
	keyfunc jwt.Keyfunc
}

// NewJWKSVerifier constructs a Verifier that validates session tokens
// against the JWKS document served at jwksURL. Keys are auto-refreshed.
func NewJWKSVerifier(ctx context.Context, jwksURL string, cfg *Config) (Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("tokeninfo: jwks url required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("tokeninfo: jwks init failed: %w", err)
	}
	return &jwksVerifier{cfg: cfg, keyfunc: guardAlgs(cfg, kf.Keyfunc)}, nil
}

func guardAlgs(cfg *Config, next jwt.Keyfunc) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		for _, a := range cfg.AllowedAlgs {
			if alg == a {
				return next(t)
			}
		}
		return nil, fmt.Errorf("disallowed alg: %s", alg)
	}
}

func (v *jwksVerifier) Verify(ctx context.Context, token string) error {
	return verify(v.cfg, v.keyfunc, token)
}

func verify(cfg *Config, kf jwt.Keyfunc, token string) error {
	if token == "" {
		return errors.New("tokeninfo: empty token")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	if _, err := parser.Parse(token, kf); err != nil {
		return fmt.Errorf("tokeninfo: token verify failed: %w", err)
	}
	return nil
}
