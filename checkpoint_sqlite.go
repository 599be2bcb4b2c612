package dynadump

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const sqliteCheckpointSchema = `CREATE TABLE IF NOT EXISTS export_checkpoints (
	source     TEXT PRIMARY KEY,
	cursor     TEXT NOT NULL,
	pages      INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// OpenSQLite opens a SQLite database using the modernc.org/sqlite driver.
// The pool is limited to one connection, which also keeps ":memory:"
// databases consistent across calls.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteCheckpoint stores checkpoints as rows of the export_checkpoints
// table, one row per source. Several exports may share one database.
type SQLiteCheckpoint struct {
	db     *sql.DB
	source string
}

// NewSQLiteCheckpoint creates a SQLiteCheckpoint for source, creating the
// schema if needed.
func NewSQLiteCheckpoint(ctx context.Context, db *sql.DB, source string) (*SQLiteCheckpoint, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite checkpoint: db is nil")
	}
	if source == "" {
		return nil, fmt.Errorf("sqlite checkpoint: source is required")
	}
	if _, err := db.ExecContext(ctx, sqliteCheckpointSchema); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint schema: %w", err)
	}
	return &SQLiteCheckpoint{db: db, source: source}, nil
}

var _ CheckpointStore = (*SQLiteCheckpoint)(nil)

// Load implements CheckpointStore.
func (s *SQLiteCheckpoint) Load(ctx context.Context) (*Checkpoint, error) {
	var (
		cursor    string
		updatedAt string
		cp        = Checkpoint{Source: s.source}
	)

	row := s.db.QueryRowContext(ctx,
		`SELECT cursor, pages, records, updated_at FROM export_checkpoints WHERE source = ?`, s.source)
	err := row.Scan(&cursor, &cp.Pages, &cp.Records, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if cp.Cursor, err = ParseCursor(cursor); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint time: %w", err)
	}

	return &cp, nil
}

// Save implements CheckpointStore.
func (s *SQLiteCheckpoint) Save(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO export_checkpoints(source, cursor, pages, records, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
	cursor = excluded.cursor,
	pages = excluded.pages,
	records = excluded.records,
	updated_at = excluded.updated_at`,
		s.source, cp.Cursor.String(), cp.Pages, cp.Records, cp.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Clear implements CheckpointStore.
func (s *SQLiteCheckpoint) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_checkpoints WHERE source = ?`, s.source); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
