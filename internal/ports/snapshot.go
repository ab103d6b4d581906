package ports

import (
	"context"

	"yahtzee/internal/domain"
)

// SnapshotStore defines durable storage for the single session snapshot.
type SnapshotStore interface {
	// Save replaces the stored snapshot with snap.
	Save(ctx context.Context, snap domain.Snapshot) error
	// Load returns the stored snapshot. found is false when nothing was saved
	// yet. Malformed data is reported as domain.ErrCorruptSnapshot.
	Load(ctx context.Context) (snap domain.Snapshot, found bool, err error)
	// Close releases the backend.
	Close() error
}
