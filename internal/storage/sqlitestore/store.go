// Package sqlitestore keeps the snapshot in a single-row SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage"
)

const timeFormat = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS session_snapshot (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	version  INTEGER NOT NULL,
	saved_at TEXT    NOT NULL,
	payload  BLOB    NOT NULL
)`

// Store provides a SQLite-backed snapshot store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the single snapshot row.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ErrNotConfigured
	}
	payload, err := storage.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO session_snapshot (id, version, saved_at, payload)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	version = excluded.version,
	saved_at = excluded.saved_at,
	payload = excluded.payload`,
		int64(snap.Version), snap.SavedAt.UTC().Format(timeFormat), payload,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot row.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Snapshot{}, false, storage.ErrNotConfigured
	}

	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM session_snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := storage.Decode(payload)
	if err != nil {
		return domain.Snapshot{}, true, err
	}
	return snap, true, nil
}
