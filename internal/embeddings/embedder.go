// Package embeddings turns text into fixed-dimension vectors for memory
// storage and similarity search. A deterministic hash embedder is always
// available as a dependency-free fallback; Ollama is used when reachable.
package embeddings

import "context"

// Embedder converts text into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
