package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoDecodesJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"challenge":"chal-1"}`)
	}))
	defer srv.Close()

	tp, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}

	var out struct {
		Challenge string `json:"challenge"`
	}
	if err := tp.Do(context.Background(), http.MethodPost, "/v1/attestation/challenge", nil, []byte(`{"appId":"a"}`), &out); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if out.Challenge != "chal-1" {
		t.Fatalf("unexpected challenge %q", out.Challenge)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		check   func(t *testing.T, err error)
	}{
		{
			name: "401 unauthorized", status: 401,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
			},
		},
		{
			name: "404 app not found", status: 404,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrAppNotFound) {
					t.Fatalf("expected ErrAppNotFound, got %v", err)
				}
			},
		},
		{
			name: "429 with retry-after", status: 429, headers: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rl *RateLimitedError
				if !errors.As(err, &rl) {
					t.Fatalf("expected RateLimitedError, got %v", err)
				}
				if rl.RetryAfter != 30 {
					t.Fatalf("expected retry after 30, got %d", rl.RetryAfter)
				}
			},
		},
		{
			name: "429 without retry-after", status: 429,
			check: func(t *testing.T, err error) {
				var rl *RateLimitedError
				if !errors.As(err, &rl) {
					t.Fatalf("expected RateLimitedError, got %v", err)
				}
				if rl.RetryAfter != 0 {
					t.Fatalf("expected zero retry after, got %d", rl.RetryAfter)
				}
			},
		},
		{
			name: "provider error envelope", status: 502, body: `{"code":"upstream_down","message":"provider unavailable"}`,
			check: func(t *testing.T, err error) {
				var pe *ProviderError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ProviderError, got %v", err)
				}
				if pe.Code != "upstream_down" || pe.Message != "provider unavailable" {
					t.Fatalf("unexpected provider error %+v", pe)
				}
			},
		},
		{
			name: "invalid api key envelope", status: 403, body: `{"code":"invalid_api_key","message":"bad key"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidAPIKey) {
					t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
				}
			},
		},
		{
			name: "undecodable error body", status: 500, body: `oops`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidResponse) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			tp, err := New(srv.URL)
			if err != nil {
				t.Fatalf("new transport: %v", err)
			}
			err = tp.Do(context.Background(), http.MethodPost, "/x", nil, nil, nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestDoStreamRequiresEventStreamContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	tp, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if _, err := tp.DoStream(context.Background(), http.MethodPost, "/x", nil, nil); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestNetworkErrorWrapsCause(t *testing.T) {
	tp, err := New("http://127.0.0.1:1") // nothing listens here
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	err = tp.Do(context.Background(), http.MethodPost, "/x", nil, nil, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestRetryOnNetworkError(t *testing.T) {
	// A server that is only reachable via the retry path cannot be
	// simulated portably; instead assert the attempt budget is honored
	// by counting requests against a server that always succeeds.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	tp, err := New(srv.URL, WithRetry(3))
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := tp.Do(context.Background(), http.MethodPost, "/x", nil, nil, nil); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call on success, got %d", calls)
	}
}

func TestRejectsNonHTTPScheme(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
