package nakama

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage"
)

// storageAPI is the part of runtime.NakamaModule the snapshot store needs.
type storageAPI interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
}

// StorageStore keeps the snapshot as a system-owned Nakama storage object.
type StorageStore struct {
	nk storageAPI
}

// NewStorageStore returns a store backed by nk.
func NewStorageStore(nk storageAPI) *StorageStore {
	return &StorageStore{nk: nk}
}

func (s *StorageStore) Save(ctx context.Context, snap domain.Snapshot) error {
	if s == nil || s.nk == nil {
		return storage.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      StorageCollection,
		Key:             StorageKey,
		Value:           string(data),
		PermissionRead:  0,
		PermissionWrite: 0,
	}})
	if err != nil {
		return fmt.Errorf("storage write: %w", err)
	}
	return nil
}

func (s *StorageStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if s == nil || s.nk == nil {
		return domain.Snapshot{}, false, storage.ErrNotConfigured
	}
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: StorageCollection,
		Key:        StorageKey,
	}})
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("storage read: %w", err)
	}
	if len(objects) == 0 {
		return domain.Snapshot{}, false, nil
	}
	snap, err := storage.Decode([]byte(objects[0].GetValue()))
	if err != nil {
		return domain.Snapshot{}, true, err
	}
	return snap, true, nil
}

// Close is a no-op; Nakama owns the database.
func (s *StorageStore) Close() error {
	return nil
}
