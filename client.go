package relayclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"

	"github.com/proxy-kit/relay-client-go/attest"
	"github.com/proxy-kit/relay-client-go/internal/logctx"
	"github.com/proxy-kit/relay-client-go/internal/signing"
	"github.com/proxy-kit/relay-client-go/internal/tokeninfo"
	"github.com/proxy-kit/relay-client-go/internal/transport"
	"github.com/proxy-kit/relay-client-go/keyring"
	"github.com/proxy-kit/relay-client-go/keyring/memorykeyring"
	"github.com/proxy-kit/relay-client-go/session"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger     *slog.Logger
	httpClient *http.Client
	platform   string
	userAgent  string
	retries    int
	jwksURL    string
	jwksFile   string
}

// WithLogger sets the slog logger used by the client and everything
// beneath it. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithHTTPClient overrides the *http.Client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithPlatformTag overrides the platform tag sent on signed requests.
func WithPlatformTag(tag string) Option {
	return func(c *clientConfig) { c.platform = tag }
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithTransportRetry enables network-level retries. attempts is the
// total number of dispatch tries per request.
func WithTransportRetry(attempts int) Option {
	return func(c *clientConfig) { c.retries = attempts }
}

// WithTokenVerification makes the client verify relay-issued session
// tokens against the JWKS document at jwksURL before trusting them.
func WithTokenVerification(jwksURL string) Option {
	return func(c *clientConfig) { c.jwksURL = jwksURL }
}

// WithTokenVerificationFile is like WithTokenVerification but reads the
// JWKS from a local file, reloading it on change.
func WithTokenVerificationFile(path string) Option {
	return func(c *clientConfig) { c.jwksFile = path }
}

// Client calls AI chat completion providers through the relay. It owns
// the session lifecycle end to end: attestation on first use, request
// signing on every call, and one transparent re-attestation when the
// relay rejects a session.
type Client struct {
	appID  string
	tp     *transport.Transport
	store  *session.Store
	coord  *Coordinator
	signer *signing.Signer
	log    *slog.Logger
}

// New constructs a Client. baseURL is the relay's base URL, appID the
// application identifier registered with the relay, and att the
// platform's attestation primitive. ring persists the session across
// restarts; pass nil to keep sessions in memory only.
//
// Construction fails fast with a *ConfigurationError before any network
// activity; the first network call happens lazily on first use.
func New(ctx context.Context, baseURL, appID string, att attest.Attestor, ring keyring.Keyring, opts ...Option) (*Client, error) {
	if appID == "" {
		return nil, &ConfigurationError{Detail: "app id must not be empty"}
	}
	if att == nil {
		return nil, &ConfigurationError{Detail: "attestor must not be nil"}
	}

	cfg := &clientConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	log := slog.New(logctx.Handler{Handler: cfg.logger.Handler()})

	tpOpts := []transport.Option{transport.WithLogger(log)}
	if cfg.httpClient != nil {
		tpOpts = append(tpOpts, transport.WithHTTPClient(cfg.httpClient))
	}
	if cfg.userAgent != "" {
		tpOpts = append(tpOpts, transport.WithUserAgent(cfg.userAgent))
	}
	if cfg.retries > 1 {
		tpOpts = append(tpOpts, transport.WithRetry(cfg.retries))
	}
	tp, err := transport.New(baseURL, tpOpts...)
	if err != nil {
		return nil, &ConfigurationError{Detail: err.Error()}
	}

	var verifier tokeninfo.Verifier
	switch {
	case cfg.jwksURL != "":
		verifier, err = tokeninfo.NewJWKSVerifier(ctx, cfg.jwksURL, nil)
	case cfg.jwksFile != "":
		verifier, err = tokeninfo.NewFileVerifier(ctx, cfg.jwksFile, nil, log)
	}
	if err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("token verification: %v", err)}
	}

	if ring == nil {
		ring = memorykeyring.New()
	}
	store := session.NewStore(ctx, ring, session.WithLogger(log))

	signerOpts := []signing.Option{}
	if cfg.platform != "" {
		signerOpts = append(signerOpts, signing.WithPlatform(cfg.platform))
	}

	return &Client{
		appID:  appID,
		tp:     tp,
		store:  store,
		coord:  newCoordinator(appID, att, tp, store, verifier, log),
		signer: signing.New(att, signerOpts...),
		log:    log,
	}, nil
}

// Config holds the environment configuration consumed by NewFromEnv.
type Config struct {
	BaseURL string `env:"RELAY_BASE_URL,required"`
	AppID   string `env:"RELAY_APP_ID,required"`
}

// NewFromEnv constructs a Client from RELAY_BASE_URL and RELAY_APP_ID.
// Missing variables surface as ErrNotConfigured.
func NewFromEnv(ctx context.Context, att attest.Attestor, ring keyring.Keyring, opts ...Option) (*Client, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return New(ctx, cfg.BaseURL, cfg.AppID, att, ring, opts...)
}

// Attestation returns the coordinator for observing or explicitly
// driving attestation. Normal use never needs it; the client attests
// lazily on first request.
func (c *Client) Attestation() *Coordinator { return c.coord }

// Reset clears the current session. The next request re-attests.
func (c *Client) Reset(ctx context.Context) {
	c.store.Clear(ctx)
}

func providerPath(provider string) string {
	return "/v1/proxy/" + url.PathEscape(strings.ToUpper(provider)) + "/chat"
}

// CreateChatCompletion sends a non-streaming chat completion request to
// the named provider and returns the decoded response.
func (c *Client) CreateChatCompletion(ctx context.Context, provider string, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	path := providerPath(provider)
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID: uuid.NewString(),
		Method:    http.MethodPost,
		Path:      path,
		Provider:  provider,
	})

	body, err := canonicalJSON(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var out ChatResponse
	if err := c.doSigned(ctx, path, body, func(ctx context.Context, headers http.Header) error {
		return c.tp.Do(ctx, http.MethodPost, path, headers, body, &out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamChatCompletion sends a streaming chat completion request and
// returns a Stream of incremental chunks. The caller must Close the
// stream. Once the stream has begun, authorization failures surface
// through Stream.Err as ErrSessionExpired; there is no mid-stream
// retry.
func (c *Client) StreamChatCompletion(ctx context.Context, provider string, req ChatRequest) (*Stream, error) {
	req.Stream = true
	path := providerPath(provider)
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID: uuid.NewString(),
		Method:    http.MethodPost,
		Path:      path,
		Provider:  provider,
	})

	body, err := canonicalJSON(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	var rc io.ReadCloser
	if err := c.doSigned(streamCtx, path, body, func(ctx context.Context, headers http.Header) error {
		var dsErr error
		rc, dsErr = c.tp.DoStream(ctx, http.MethodPost, path, headers, body)
		return dsErr
	}); err != nil {
		cancel()
		return nil, err
	}
	return newStream(rc, cancel), nil
}

// doSigned runs one signed dispatch, recovering from a rejected session
// exactly once: on 401 it clears the session, re-attests, re-signs and
// re-dispatches. A second 401 propagates.
func (c *Client) doSigned(ctx context.Context, path string, body []byte, dispatch func(context.Context, http.Header) error) error {
	headers, ctx2, err := c.signedHeaders(ctx, path, body)
	if err != nil {
		return err
	}
	err = dispatch(ctx2, headers)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return err
	}

	c.log.DebugContext(ctx, "request.unauthorized.reattest")
	c.store.Clear(ctx)
	if attErr := c.coord.Attest(ctx); attErr != nil {
		return attErr
	}
	headers, ctx2, err = c.signedHeaders(ctx, path, body)
	if err != nil {
		return err
	}
	return dispatch(ctx2, headers)
}

// signedHeaders ensures a valid session exists and builds the
// Authorization and signature headers for one request. The returned
// context carries session data for log enrichment.
func (c *Client) signedHeaders(ctx context.Context, path string, body []byte) (http.Header, context.Context, error) {
	cur, err := c.store.Current(ctx)
	if errors.Is(err, ErrSessionExpired) {
		if attErr := c.coord.Attest(ctx); attErr != nil {
			return nil, ctx, attErr
		}
		cur, err = c.store.Current(ctx)
	}
	if err != nil {
		return nil, ctx, err
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{AppID: cur.AppID, KeyID: cur.KeyID})

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cur.Token)

	// Sessions from relay deployments that skip key binding have no
	// KeyID; those requests go out bearer-only.
	if cur.KeyID != "" {
		sig, err := c.signer.Sign(ctx, cur.KeyID, http.MethodPost, path, body)
		if err != nil {
			return nil, ctx, &AttestationError{Reason: "request signing failed", Err: err}
		}
		for k, vs := range sig.Headers() {
			for _, v := range vs {
				headers.Set(k, v)
			}
		}
	}
	return headers, ctx, nil
}
