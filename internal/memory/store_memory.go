package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps memories in a map with no persistence, for tests
// and ephemeral deployments.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]Entry)}
}

func (s *InMemoryStore) Add(ctx context.Context, text string, embedding []float32, metadata map[string]any) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Entry{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		Metadata:  metadata,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
	return id, nil
}

func (s *InMemoryStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Result, error) {
	s.mu.Lock()
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	scored := make([]Result, 0, len(entries))
	for _, e := range entries {
		scored = append(scored, Result{
			ID:            e.ID,
			Text:          e.Text,
			Metadata:      e.Metadata,
			Timestamp:     e.Timestamp,
			Similarity:    cosineSimilarity(queryEmbedding, e.Embedding),
			HasSimilarity: true,
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

var _ Store = (*InMemoryStore)(nil)
