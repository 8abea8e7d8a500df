package memory

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreAddAndSearch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, "the quick brown fox", []float32{1, 0, 0}, map[string]any{"tag": "animal"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty id")
	}

	results, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected 1 result with id %s, got %+v", id, results)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("expected near-1.0 similarity for identical vector, got %v", results[0].Similarity)
	}
}

func TestSQLiteStoreSearchRanksBySimilarity(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	closeID, _ := s.Add(ctx, "close match", []float32{1, 0, 0}, nil)
	_, _ = s.Add(ctx, "far match", []float32{0, 1, 0}, nil)

	results, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != closeID {
		t.Errorf("expected closest vector first, got %s", results[0].ID)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, _ := s.Add(ctx, "to be deleted", []float32{1, 0}, nil)
	ok, err := s.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v; want true, nil", ok, err)
	}

	ok, err = s.Delete(ctx, id)
	if err != nil || ok {
		t.Errorf("expected second delete to report false, got %v, %v", ok, err)
	}
}

func TestSQLiteStoreClear(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, _ = s.Add(ctx, "one", []float32{1}, nil)
	_, _ = s.Add(ctx, "two", []float32{0}, nil)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	results, err := s.Search(ctx, []float32{1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty store after Clear, got %d results", len(results))
	}
}

func TestSQLiteStoreKeywordSearch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, _ := s.Add(ctx, "the capital of france is paris", []float32{1}, nil)
	_, _ = s.Add(ctx, "unrelated memory about cooking", []float32{0}, nil)

	results, err := s.SearchKeyword(ctx, "paris france", 5)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(results) == 0 || results[0].ID != id {
		t.Fatalf("expected keyword search to surface matching memory, got %+v", results)
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	id, err := s.Add(ctx, "hello", []float32{1, 0}, nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected result with id %s, got %+v", id, results)
	}

	ok, err := s.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
}

func TestNoopStoreDiscardsEverything(t *testing.T) {
	s := NewNoopStore()
	ctx := context.Background()

	id, err := s.Add(ctx, "anything", nil, nil)
	if err != nil || id == "" {
		t.Fatalf("Add = %q, %v; want non-empty id, nil", id, err)
	}

	results, err := s.Search(ctx, []float32{1}, 5)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty search results from noop store")
	}
}

func TestCreateStoreUnknownBackend(t *testing.T) {
	if _, err := CreateStore("bogus", ""); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}
