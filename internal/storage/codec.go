// Package storage holds what every snapshot backend shares.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"yahtzee/internal/domain"
)

// ErrNotConfigured is returned by a store used after Close or never opened.
var ErrNotConfigured = errors.New("storage is not configured")

// Encode serialises a snapshot.
func Encode(snap domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored snapshot. Anything unreadable is reported as
// domain.ErrCorruptSnapshot.
func Decode(data []byte) (domain.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: empty payload", domain.ErrCorruptSnapshot)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	return snap, nil
}
