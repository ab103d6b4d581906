// Package redisstore keeps the snapshot under one Redis key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "yahtzee:snapshot"

// Store handles Redis operations for snapshot storage.
type Store struct {
	client *redis.Client
	key    string
}

// Open connects to redisURL and verifies the connection.
func Open(ctx context.Context, redisURL, key string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, key), nil
}

// New wraps an existing client.
func New(client *redis.Client, key string) *Store {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Save replaces the snapshot. It never expires.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return storage.ErrNotConfigured
	}
	payload, err := storage.Encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

// Load fetches the snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	if s == nil || s.client == nil {
		return domain.Snapshot{}, false, storage.ErrNotConfigured
	}
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to get snapshot: %w", err)
	}
	snap, err := storage.Decode(payload)
	if err != nil {
		return domain.Snapshot{}, true, err
	}
	return snap, true, nil
}
