// Package boltstore keeps the snapshot in a BoltDB file.
package boltstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage"
)

const (
	sessionBucket = "session"
	snapshotKey   = "snapshot"
)

// Store provides a BoltDB-backed snapshot store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return storage.ErrNotConfigured
	}
	payload, err := storage.Encode(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.Put([]byte(snapshotKey), payload)
	})
}

// Load fetches the stored snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	if s == nil || s.db == nil {
		return domain.Snapshot{}, false, storage.ErrNotConfigured
	}

	var (
		snap  domain.Snapshot
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		payload := bucket.Get([]byte(snapshotKey))
		if payload == nil {
			return nil
		}
		found = true
		var err error
		snap, err = storage.Decode(payload)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, found, err
	}
	return snap, found, nil
}
