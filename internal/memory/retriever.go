package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/ctxproxy/internal/embeddings"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

const (
	defaultSimilarityThreshold = 0.5
	defaultTemplate            = "Relevant context from memory: {text}"
)

// RetrieverConfig configures a Retriever's defaults.
type RetrieverConfig struct {
	DefaultTopK         int
	SimilarityThreshold float64
	Template            string
}

// DefaultRetrieverConfig matches spec.md §4.12's defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		DefaultTopK:         3,
		SimilarityThreshold: defaultSimilarityThreshold,
		Template:            defaultTemplate,
	}
}

// Retriever embeds and stores memories, and retrieves relevant ones
// for context augmentation.
type Retriever struct {
	store    Store
	embedder embeddings.Embedder
	cfg      RetrieverConfig
}

// NewRetriever returns a Retriever backed by store and embedder.
func NewRetriever(store Store, embedder embeddings.Embedder, cfg RetrieverConfig) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultRetrieverConfig().DefaultTopK
	}
	if cfg.Template == "" {
		cfg.Template = defaultTemplate
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

// AddMemory embeds text and stores it, returning the new memory's id.
func (r *Retriever) AddMemory(ctx context.Context, text string, metadata map[string]any) (string, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed memory text: %w", err)
	}
	id, err := r.store.Add(ctx, text, vec, metadata)
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	L_debug("memory: retriever added memory", "id", id)
	return id, nil
}

// Retrieve embeds query, searches the store, and filters to results
// clearing the similarity threshold. When includeMetadata is false,
// Metadata is cleared on the returned results; the other fields stay set.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, includeMetadata bool) ([]Result, error) {
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if !res.Passes(r.cfg.SimilarityThreshold) {
			continue
		}
		if !includeMetadata {
			res.Metadata = nil
		}
		filtered = append(filtered, res)
	}

	L_info("memory: retrieved", "query", truncateForLog(query, 50), "count", len(filtered))
	return filtered, nil
}

// ErrKeywordSearchUnsupported is returned when the underlying store has
// no keyword-search index (every backend but SQLiteStore).
var ErrKeywordSearchUnsupported = fmt.Errorf("memory: store does not support keyword search")

// SearchKeyword runs the auxiliary BM25 keyword search path, used only
// by the management API's mode=keyword search requests; the core
// retrieve-for-context path always uses vector/cosine search.
func (r *Retriever) SearchKeyword(ctx context.Context, query string, topK int) ([]Result, error) {
	ks, ok := r.store.(KeywordStore)
	if !ok {
		return nil, ErrKeywordSearchUnsupported
	}
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}
	results, err := ks.SearchKeyword(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	L_info("memory: keyword search", "query", truncateForLog(query, 50), "count", len(results))
	return results, nil
}

// DeleteMemory removes a stored memory by id.
func (r *Retriever) DeleteMemory(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// ClearMemory discards every stored memory.
func (r *Retriever) ClearMemory(ctx context.Context) error {
	return r.store.Clear(ctx)
}

// RetrieveForContext renders matching memories into a single string
// using cfg.Template, joined by newlines; empty if nothing matched.
func (r *Retriever) RetrieveForContext(ctx context.Context, query string, topK int) (string, error) {
	results, err := r.Retrieve(ctx, query, topK, false)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text)
	}
	joined := strings.Join(texts, "\n")
	return strings.ReplaceAll(r.cfg.Template, "{text}", joined), nil
}

// truncateForLog truncates text for logging, collapsing newlines.
func truncateForLog(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
