package embeddings

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedderIsDeterministic(t *testing.T) {
	h := NewHashEmbedder(32)
	v1, err := h.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := h.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic output, differs at index %d: %v != %v", i, v1[i], v2[i])
		}
	}
}

func TestHashEmbedderIgnoresCaseAndSurroundingSpace(t *testing.T) {
	h := NewHashEmbedder(32)
	v1, _ := h.Embed(context.Background(), "Hello World")
	v2, _ := h.Embed(context.Background(), "  hello world  ")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected case/whitespace-insensitive embedding, differs at index %d", i)
		}
	}
}

func TestHashEmbedderDiffersByInput(t *testing.T) {
	h := NewHashEmbedder(32)
	v1, _ := h.Embed(context.Background(), "hello")
	v2, _ := h.Embed(context.Background(), "goodbye")

	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("expected different inputs to produce different vectors")
	}
}

func TestHashEmbedderIsUnitNorm(t *testing.T) {
	h := NewHashEmbedder(64)
	v, _ := h.Embed(context.Background(), "some text to embed")

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("expected L2 norm ~1.0, got %v", norm)
	}
}

func TestHashEmbedderDefaultDimension(t *testing.T) {
	h := NewHashEmbedder(0)
	if h.Dimensions() != DefaultDimensions {
		t.Errorf("Dimensions() = %d, want %d", h.Dimensions(), DefaultDimensions)
	}
}

func TestHashEmbedderBatchMatchesSingle(t *testing.T) {
	h := NewHashEmbedder(16)
	texts := []string{"a", "b", "c"}
	batch, err := h.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, text := range texts {
		single, _ := h.Embed(context.Background(), text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] differs from single embed", i)
			}
		}
	}
}

func TestNoopEmbedderReturnsZeroVector(t *testing.T) {
	n := NewNoopEmbedder(8)
	v, err := n.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected all-zero vector, got %v", v)
			break
		}
	}
}

func TestCreateEmbedderNoop(t *testing.T) {
	e := CreateEmbedder("noop", Options{})
	if e.Name() != "noop" {
		t.Errorf("Name() = %q, want noop", e.Name())
	}
}

func TestCreateEmbedderHash(t *testing.T) {
	e := CreateEmbedder("hash", Options{Dimension: 16})
	if e.Name() != "hash" {
		t.Errorf("Name() = %q, want hash", e.Name())
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions() = %d, want 16", e.Dimensions())
	}
}

func TestCreateEmbedderDefaultsToOllama(t *testing.T) {
	e := CreateEmbedder("some-model", Options{})
	if e.Name() != "ollama:some-model" {
		t.Errorf("Name() = %q, want ollama:some-model", e.Name())
	}
}

func TestOllamaEmbedderFallsBackBeforeAvailable(t *testing.T) {
	e := NewOllamaEmbedder("http://127.0.0.1:1", "unreachable-model", 24)
	v, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 24 {
		t.Errorf("expected fallback dimension 24, got %d", len(v))
	}
}
