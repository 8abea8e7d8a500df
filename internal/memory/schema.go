package memory

import (
	"database/sql"
	"fmt"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

const schemaVersion = 1

// initSchema creates the memory tables and indexes.
func initSchema(db *sql.DB) error {
	L_debug("memory: initializing schema", "version", schemaVersion)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		L_warn("memory: failed to enable WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		L_warn("memory: failed to set busy timeout", "error", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create memory_meta table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT value FROM memory_meta WHERE key = 'schema_version'").Scan(&currentVersion)
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if currentVersion < schemaVersion {
		if err := migrateSchema(db, currentVersion); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	L_debug("memory: schema ready", "version", schemaVersion)
	return nil
}

func migrateSchema(db *sql.DB, fromVersion int) error {
	L_info("memory: migrating schema", "from", fromVersion, "to", schemaVersion)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if fromVersion < 1 {
		if err := migrateV1(tx); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO memory_meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}

	return tx.Commit()
}

// migrateV1 creates the memories table (spec's durable vector index
// contract) plus an FTS5 auxiliary table used only by the keyword
// search path.
func migrateV1(tx *sql.Tx) error {
	L_debug("memory: creating v1 schema")

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			embedding_blob BLOB NOT NULL,
			metadata_json TEXT,
			timestamp REAL NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
			text,
			id UNINDEXED,
			content='memories',
			content_rowid='rowid'
		)
	`); err != nil {
		return fmt.Errorf("create memory_fts table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memory_fts(rowid, text, id) VALUES (NEW.rowid, NEW.text, NEW.id);
		END
	`); err != nil {
		return fmt.Errorf("create insert trigger: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, text, id) VALUES ('delete', OLD.rowid, OLD.text, OLD.id);
		END
	`); err != nil {
		return fmt.Errorf("create delete trigger: %w", err)
	}

	return nil
}
