package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// SQLiteStore is the durable vector index backend: a single `memories`
// table scanned with cosine similarity, since no native vector-search
// extension is assumed to be present.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at
// path and ensures its schema is current.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer, matches WAL + busy_timeout contract

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	L_info("memory: sqlite store ready", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, text string, embedding []float32, metadata map[string]any) (string, error) {
	id := uuid.NewString()

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}

	var metadataJSON sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, text, embedding_blob, metadata_json, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, id, text, embeddingJSON, metadataJSON, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}

	L_debug("memory: added", "id", id, "textLength", len(text))
	return id, nil
}

// Search scans every row and ranks by cosine similarity, per spec.md
// §4.11's cosine-fallback contract. Returned results carry Similarity,
// not Distance.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding_blob, metadata_json, timestamp FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var scored []Result
	for rows.Next() {
		var id, text string
		var embeddingBlob []byte
		var metadataJSON sql.NullString
		var timestamp float64
		if err := rows.Scan(&id, &text, &embeddingBlob, &metadataJSON, &timestamp); err != nil {
			continue
		}

		var embedding []float32
		if err := json.Unmarshal(embeddingBlob, &embedding); err != nil {
			continue
		}

		var metadata map[string]any
		if metadataJSON.Valid {
			_ = json.Unmarshal([]byte(metadataJSON.String), &metadata)
		}

		scored = append(scored, Result{
			ID:            id,
			Text:          text,
			Metadata:      metadata,
			Timestamp:     timestamp,
			Similarity:    cosineSimilarity(queryEmbedding, embedding),
			HasSimilarity: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	L_debug("memory: deleted", "id", id, "success", n > 0)
	return n > 0, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	L_info("memory: cleared")
	return nil
}

// SearchKeyword runs FTS5 BM25 keyword search, used only by the
// management API's mode=keyword search path.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, query string, limit int) ([]Result, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.text, m.metadata_json, m.timestamp, bm25(memory_fts) AS rank
		FROM memory_fts
		JOIN memories m ON m.id = memory_fts.id
		WHERE memory_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id, text string
		var metadataJSON sql.NullString
		var timestamp, rank float64
		if err := rows.Scan(&id, &text, &metadataJSON, &timestamp, &rank); err != nil {
			continue
		}
		var metadata map[string]any
		if metadataJSON.Valid {
			_ = json.Unmarshal([]byte(metadataJSON.String), &metadata)
		}
		results = append(results, Result{
			ID:            id,
			Text:          text,
			Metadata:      metadata,
			Timestamp:     timestamp,
			Similarity:    1.0 / (1.0 + math.Abs(rank)),
			HasSimilarity: true,
		})
	}
	return results, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
