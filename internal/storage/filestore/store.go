// Package filestore keeps the snapshot in a single JSON file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage"
)

// Store writes the snapshot to path via a temp file and rename, so a crash
// never leaves a truncated file behind.
type Store struct {
	path string
}

// Open prepares a store at path, creating its directory.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{path: clean}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Save atomically replaces the snapshot file.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.path == "" {
		return storage.ErrNotConfigured
	}
	data, err := storage.Encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// Only still present when something below failed.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file is not an error.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	if s == nil || s.path == "" {
		return domain.Snapshot{}, false, storage.ErrNotConfigured
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := storage.Decode(data)
	if err != nil {
		return domain.Snapshot{}, true, err
	}
	return snap, true, nil
}
