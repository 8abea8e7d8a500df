package forward

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roelfdiedericks/ctxproxy/internal/providers"
)

func testProvider(baseURL string) providers.Provider {
	return providers.Provider{
		ID:         "openai",
		BaseURL:    baseURL,
		APIKey:     "sk-test",
		MaxRetries: 2,
		TimeoutSec: 5,
	}
}

func TestSendSuccessReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New()
	resp, err := c.Send(context.Background(), testProvider(srv.URL), map[string]any{"model": "gpt-4"}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSendStripsModelPrefix(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	p := testProvider(srv.URL)
	p.ID = "kimi"
	resp, err := c.Send(context.Background(), p, map[string]any{"model": "kimi:moonshot-v1-8k"}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()

	if gotModel != "moonshot-v1-8k" {
		t.Errorf("model = %q, want stripped suffix", gotModel)
	}
}

func TestSendMergesExtraBodyProviderWins(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	p := testProvider(srv.URL)
	p.ExtraBody = map[string]any{"temperature": 0.1}

	resp, err := c.Send(context.Background(), p, map[string]any{"model": "gpt-4", "temperature": 0.9}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()

	if got["temperature"].(float64) != 0.1 {
		t.Errorf("temperature = %v, want provider override 0.1", got["temperature"])
	}
}

func TestSendCapsMaxTokensAgainstContextWindow(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	p := testProvider(srv.URL)
	p.ContextWindow = 200

	resp, err := c.Send(context.Background(), p, map[string]any{
		"model":      "gpt-4",
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
		"max_tokens": 10000,
	}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()

	capped, ok := got["max_tokens"].(float64)
	if !ok || capped >= 10000 {
		t.Errorf("max_tokens = %v, want capped below requested 10000 for a 200-token window", got["max_tokens"])
	}
}

func TestSendLeavesMaxTokensUnsetWhenContextWindowUnknown(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	resp, err := c.Send(context.Background(), testProvider(srv.URL), map[string]any{"model": "gpt-4"}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()

	if _, present := got["max_tokens"]; present {
		t.Errorf("expected no max_tokens field when provider has no context window, got %v", got["max_tokens"])
	}
}

func TestSendRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	start := time.Now()
	resp, err := c.Send(context.Background(), testProvider(srv.URL), map[string]any{"model": "gpt-4"}, false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if time.Since(start) < time.Second {
		t.Errorf("expected at least one backoff wait before success")
	}
}

func TestSendDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Send(context.Background(), testProvider(srv.URL), map[string]any{"model": "gpt-4"}, false)
	if err == nil {
		t.Fatalf("expected error for 4xx response")
	}
	var permErr *ErrUpstreamPermanent
	if !asErrUpstreamPermanent(err, &permErr) {
		t.Fatalf("expected ErrUpstreamPermanent, got %T: %v", err, err)
	}
	if permErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", permErr.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 call for a 4xx, got %d", calls)
	}
}

func asErrUpstreamPermanent(err error, target **ErrUpstreamPermanent) bool {
	e, ok := err.(*ErrUpstreamPermanent)
	if ok {
		*target = e
	}
	return ok
}

func TestBackoffBounds(t *testing.T) {
	if backoff(0) != time.Second {
		t.Errorf("backoff(0) = %v, want 1s floor", backoff(0))
	}
	if backoff(10) != 10*time.Second {
		t.Errorf("backoff(10) = %v, want 10s ceiling", backoff(10))
	}
	if backoff(2) != 4*time.Second {
		t.Errorf("backoff(2) = %v, want 4s", backoff(2))
	}
}

func TestCopyStreamPreservesBytes(t *testing.T) {
	body := "data: chunk1\n\ndata: chunk2\n\n"
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(body))}

	w := &captureWriter{}
	if err := CopyStream(w, nil, resp); err != nil {
		t.Fatalf("CopyStream: %v", err)
	}
	if w.String() != body {
		t.Errorf("CopyStream output = %q, want %q", w.String(), body)
	}
}

type captureWriter struct{ buf []byte }

func (c *captureWriter) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	return len(p), nil
}
func (c *captureWriter) String() string { return string(c.buf) }
