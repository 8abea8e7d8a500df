package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// OllamaEmbedder generates embeddings through a local or remote Ollama
// instance. It probes availability in the background at construction
// time so the first real request doesn't pay the probe latency, and
// falls back to a HashEmbedder whenever Ollama can't be reached.
type OllamaEmbedder struct {
	url      string
	model    string
	client   *http.Client
	fallback *HashEmbedder

	mu        sync.RWMutex
	available bool
	dim       int
	onReady   func()
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder backed by url/model and begins
// probing availability asynchronously.
func NewOllamaEmbedder(url, model string, fallbackDim int) *OllamaEmbedder {
	url = strings.TrimSuffix(url, "/")
	e := &OllamaEmbedder{
		url:      url,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		fallback: NewHashEmbedder(fallbackDim),
	}

	L_info("embeddings: ollama embedder created", "url", url, "model", model)
	go e.checkAvailability()

	return e
}

func (e *OllamaEmbedder) checkAvailability() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	vec, err := e.request(ctx, "test")
	if err != nil {
		L_warn("embeddings: ollama not available, using hash fallback", "error", err, "url", e.url)
		e.mu.Lock()
		e.available = false
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.dim = len(vec)
	e.available = true
	cb := e.onReady
	e.mu.Unlock()

	L_info("embeddings: ollama embedder ready", "url", e.url, "model", e.model, "dimensions", len(vec))
	if cb != nil {
		go cb()
	}
}

// OnReady registers a callback fired once Ollama becomes reachable. If
// it's already available, the callback fires immediately.
func (e *OllamaEmbedder) OnReady(cb func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReady = cb
	if e.available && cb != nil {
		go cb()
	}
}

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.available {
		return e.dim
	}
	return e.fallback.Dimensions()
}

func (e *OllamaEmbedder) isAvailable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.isAvailable() {
		return e.fallback.Embed(ctx, text)
	}
	vec, err := e.request(ctx, text)
	if err != nil {
		L_warn("embeddings: ollama request failed, falling back to hash", "error", err)
		return e.fallback.Embed(ctx, text)
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) request(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := e.url + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
var _ Embedder = (*HashEmbedder)(nil)
var _ Embedder = (*NoopEmbedder)(nil)
