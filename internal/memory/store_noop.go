package memory

import (
	"context"

	"github.com/google/uuid"
)

// NoopStore discards everything; used in tests and to fully disable
// the memory feature without branching pipeline logic.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) Add(ctx context.Context, text string, embedding []float32, metadata map[string]any) (string, error) {
	return uuid.NewString(), nil
}

func (s *NoopStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Result, error) {
	return nil, nil
}

func (s *NoopStore) Delete(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (s *NoopStore) Clear(ctx context.Context) error {
	return nil
}

var _ Store = (*NoopStore)(nil)
