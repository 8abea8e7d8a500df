// Package memory stores and retrieves free-text memories with vector
// embeddings for context augmentation, backed by SQLite with a cosine
// similarity fallback when no native vector index is available.
package memory

import "context"

// Entry is a stored memory record.
type Entry struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
	Timestamp float64
}

// Result is a single search hit. Either Similarity (higher is closer,
// [0,1]) or Distance (lower is closer) is populated depending on the
// backend; callers must handle either form.
type Result struct {
	ID         string
	Text       string
	Metadata   map[string]any
	Timestamp  float64
	Similarity float64
	HasSimilarity bool
	Distance      float64
	HasDistance   bool
}

// Passes reports whether the result clears threshold, per spec.md
// §4.12's "similarity ≥ threshold OR distance ≤ (1 - threshold)" rule.
func (r Result) Passes(threshold float64) bool {
	if r.HasSimilarity {
		return r.Similarity >= threshold
	}
	if r.HasDistance {
		return r.Distance <= (1 - threshold)
	}
	return false
}

// Store is the protocol every memory backend implements.
type Store interface {
	Add(ctx context.Context, text string, embedding []float32, metadata map[string]any) (string, error)
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Result, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

// KeywordStore is implemented by backends that support an auxiliary
// keyword search path (currently only SQLiteStore, via FTS5). Not
// part of Store since noop/in-memory backends have no index for it.
type KeywordStore interface {
	SearchKeyword(ctx context.Context, query string, limit int) ([]Result, error)
}
