// Package backend opens the snapshot store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"yahtzee/internal/config"
	"yahtzee/internal/ports"
	"yahtzee/internal/storage/boltstore"
	"yahtzee/internal/storage/filestore"
	"yahtzee/internal/storage/redisstore"
	"yahtzee/internal/storage/sqlitestore"
)

// Open returns the configured store.
func Open(ctx context.Context, cfg config.Storage) (ports.SnapshotStore, error) {
	var (
		store ports.SnapshotStore
		err   error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		var s *filestore.Store
		s, err = filestore.Open(cfg.Path)
		store = s
	case config.BackendBolt:
		var s *boltstore.Store
		s, err = boltstore.Open(cfg.Path)
		store = s
	case config.BackendSQLite:
		var s *sqlitestore.Store
		s, err = sqlitestore.Open(cfg.Path)
		store = s
	case config.BackendRedis:
		var s *redisstore.Store
		s, err = redisstore.Open(ctx, cfg.RedisURL, cfg.RedisKey)
		store = s
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return store, nil
}
