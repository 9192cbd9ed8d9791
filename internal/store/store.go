// Package store provides SQLite-backed persistence for finished
// annotation runs. The engine itself owns no persistent state; this is a
// cache and audit log sitting behind it.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id                   TEXT PRIMARY KEY,
	key                  TEXT NOT NULL UNIQUE,
	sentence             TEXT NOT NULL,
	registry_version     TEXT NOT NULL,
	note_mode            TEXT NOT NULL,
	validation_mode      TEXT NOT NULL,
	valid                INTEGER NOT NULL DEFAULT 0,
	payload              TEXT NOT NULL,
	backoff_nodes        INTEGER NOT NULL DEFAULT 0,
	backoff_leaf         INTEGER NOT NULL DEFAULT 0,
	backoff_aggregate    INTEGER NOT NULL DEFAULT 0,
	backoff_unique_spans INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_annotations_key ON annotations(key);
CREATE INDEX IF NOT EXISTS idx_annotations_created ON annotations(created_at);
`

// DB wraps a sql.DB with annotation-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// AnnotationStore is the persistence surface the service layer depends on.
type AnnotationStore interface {
	Upsert(row AnnotationRow) error
	GetByID(id string) (*AnnotationRow, error)
	GetByKey(key string) (*AnnotationRow, error)
	List(limit, offset int, query string) ([]AnnotationRow, int, error)
	Delete(id string) error
	Close() error
}

var _ AnnotationStore = (*DB)(nil)
