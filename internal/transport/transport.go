// Package transport performs HTTP request/response and
// request/streaming-response operations against the relay base URL,
// mapping status codes to the SDK's typed errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

// Option configures a Transport.
type Option func(*config)

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	attempts   int
	backoff    time.Duration
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithLogger sets the slog logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithRetry enables re-dispatch of requests that failed with a network
// error before any HTTP status was obtained. attempts is the total
// number of tries; the default is 1 (no retry). Status-level errors,
// including 429, are never retried here.
func WithRetry(attempts int) Option {
	return func(c *config) {
		if attempts > 1 {
			c.attempts = attempts
		}
	}
}

// Transport dispatches JSON requests to the relay.
type Transport struct {
	baseURL  *url.URL
	hc       *http.Client
	log      *slog.Logger
	ua       string
	attempts int
	backoff  time.Duration
}

// New validates the base URL and constructs a Transport.
func New(baseURL string, opts ...Option) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("base URL must use HTTP or HTTPS scheme, got %q", u.Scheme)
	}

	cfg := &config{httpClient: http.DefaultClient, logger: slog.Default(), attempts: 1, backoff: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Transport{
		baseURL:  u,
		hc:       cfg.httpClient,
		log:      cfg.logger,
		ua:       cfg.userAgent,
		attempts: cfg.attempts,
		backoff:  cfg.backoff,
	}, nil
}

// Do performs a JSON request and decodes a 2xx response body into out.
// Pass a nil out to discard the body.
func (t *Transport) Do(ctx context.Context, method, path string, headers http.Header, body []byte, out any) error {
	resp, err := t.dispatch(ctx, method, path, headers, body, jsonMediaType.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := t.checkStatus(ctx, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if !responseMatches(resp, jsonMediaType) {
		return fmt.Errorf("%w: unexpected content type %q", ErrInvalidResponse, resp.Header.Get("Content-Type"))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// DoStream performs a request expecting a text/event-stream response
// and returns the undecoded body. The caller owns the reader and must
// close it to release the connection.
func (t *Transport) DoStream(ctx context.Context, method, path string, headers http.Header, body []byte) (io.ReadCloser, error) {
	resp, err := t.dispatch(ctx, method, path, headers, body, eventStreamMediaType.String())
	if err != nil {
		return nil, err
	}
	if err := t.checkStatus(ctx, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !responseMatches(resp, eventStreamMediaType) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: expected event stream, got content type %q", ErrInvalidResponse, resp.Header.Get("Content-Type"))
	}
	return resp.Body, nil
}

func (t *Transport) dispatch(ctx context.Context, method, path string, headers http.Header, body []byte, accept string) (*http.Response, error) {
	u := t.baseURL.JoinPath(path)

	var resp *http.Response
	for attempt := 1; ; attempt++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if body != nil {
			req.Header.Set("Content-Type", jsonMediaType.String())
		}
		req.Header.Set("Accept", accept)
		if t.ua != "" {
			req.Header.Set("User-Agent", t.ua)
		}

		start := time.Now()
		t.log.DebugContext(ctx, "http.request.start",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt),
		)
		resp, err = t.hc.Do(req)
		if err != nil {
			t.log.DebugContext(ctx, "http.request.fail",
				slog.String("err", err.Error()),
				slog.Duration("dur", time.Since(start)),
			)
			if attempt < t.attempts && ctx.Err() == nil {
				select {
				case <-ctx.Done():
					return nil, &NetworkError{Err: ctx.Err()}
				case <-time.After(t.backoff):
				}
				continue
			}
			return nil, &NetworkError{Err: err}
		}
		t.log.DebugContext(ctx, "http.request.done",
			slog.Int("status", resp.StatusCode),
			slog.Duration("dur", time.Since(start)),
		)
		return resp, nil
	}
}

// errorEnvelope is the relay's structured error body.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (t *Transport) checkStatus(ctx context.Context, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Bounded read: error bodies are small, never stream them fully.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrAppNotFound
	case http.StatusTooManyRequests:
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				retryAfter = n
			}
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Code != "" {
		if env.Code == "invalid_api_key" {
			return ErrInvalidAPIKey
		}
		return &ProviderError{Code: env.Code, Message: env.Message}
	}
	return fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
}

func responseMatches(resp *http.Response, want contenttype.MediaType) bool {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	got := contenttype.NewMediaType(ct)
	return got.Matches(want)
}
