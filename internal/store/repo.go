package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// AnnotationRow is one persisted annotation run.
type AnnotationRow struct {
	ID              string
	Key             string
	Sentence        string
	RegistryVersion string
	NoteMode        string
	ValidationMode  string
	Valid           bool
	Payload         []byte
	BackoffNodes    int
	BackoffLeaf     int
	BackoffAgg      int
	BackoffSpans    int
	CreatedAt       time.Time
}

// Upsert inserts or replaces a run keyed by its annotation key.
func (db *DB) Upsert(row AnnotationRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO annotations
			(id, key, sentence, registry_version, note_mode, validation_mode,
			 valid, payload, backoff_nodes, backoff_leaf, backoff_aggregate,
			 backoff_unique_spans, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			id                   = excluded.id,
			valid                = excluded.valid,
			payload              = excluded.payload,
			backoff_nodes        = excluded.backoff_nodes,
			backoff_leaf         = excluded.backoff_leaf,
			backoff_aggregate    = excluded.backoff_aggregate,
			backoff_unique_spans = excluded.backoff_unique_spans,
			created_at           = excluded.created_at
	`, row.ID, row.Key, row.Sentence, row.RegistryVersion, row.NoteMode,
		row.ValidationMode, row.Valid, row.Payload, row.BackoffNodes,
		row.BackoffLeaf, row.BackoffAgg, row.BackoffSpans, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert annotation: %w", err)
	}
	return nil
}

// GetByID returns the run with the given id.
func (db *DB) GetByID(id string) (*AnnotationRow, error) {
	return db.getWhere("id = ?", id)
}

// GetByKey returns the run with the given annotation key.
func (db *DB) GetByKey(key string) (*AnnotationRow, error) {
	return db.getWhere("key = ?", key)
}

func (db *DB) getWhere(where string, arg any) (*AnnotationRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, key, sentence, registry_version, note_mode, validation_mode,
		       valid, payload, backoff_nodes, backoff_leaf, backoff_aggregate,
		       backoff_unique_spans, created_at
		FROM annotations WHERE `+where, arg)
	var r AnnotationRow
	err := row.Scan(&r.ID, &r.Key, &r.Sentence, &r.RegistryVersion, &r.NoteMode,
		&r.ValidationMode, &r.Valid, &r.Payload, &r.BackoffNodes,
		&r.BackoffLeaf, &r.BackoffAgg, &r.BackoffSpans, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get annotation: %w", err)
	}
	return &r, nil
}

// List returns runs newest first, with an optional substring filter on
// the sentence text.
func (db *DB) List(limit, offset int, query string) ([]AnnotationRow, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := "1=1"
	args := []any{}
	if query != "" {
		where = "sentence LIKE ?"
		args = append(args, "%"+query+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM annotations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count annotations: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, key, sentence, registry_version, note_mode, validation_mode,
		       valid, payload, backoff_nodes, backoff_leaf, backoff_aggregate,
		       backoff_unique_spans, created_at
		FROM annotations WHERE `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list annotations: %w", err)
	}
	defer rows.Close()

	var out []AnnotationRow
	for rows.Next() {
		var r AnnotationRow
		if err := rows.Scan(&r.ID, &r.Key, &r.Sentence, &r.RegistryVersion,
			&r.NoteMode, &r.ValidationMode, &r.Valid, &r.Payload,
			&r.BackoffNodes, &r.BackoffLeaf, &r.BackoffAgg, &r.BackoffSpans,
			&r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: scan annotation: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Delete removes a run by id.
func (db *DB) Delete(id string) error {
	res, err := db.conn.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
