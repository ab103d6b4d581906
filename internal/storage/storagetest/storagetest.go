// Package storagetest provides fixtures and a shared contract test for
// snapshot stores.
package storagetest

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"yahtzee/internal/domain"
	"yahtzee/internal/ports"
)

// Now is the fixed clock used by fixtures.
var Now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Snapshot returns a mid-game snapshot with two players and one score.
func Snapshot(t *testing.T, version uint64) domain.Snapshot {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(version)))
	s := domain.NewSessionStore()
	if _, err := s.Join("c1", "10.0.0.1", "Alice", Now, rng); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("c2", "10.0.0.2", "Bob", Now, rng); err != nil {
		t.Fatalf("join: %v", err)
	}
	g := domain.NewGameState()
	if err := g.StartGame(s.Order(), rng); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := g.RequestScore("c1", domain.Chance); err != nil {
		t.Fatalf("score: %v", err)
	}
	return domain.Capture(s, g, version, Now)
}

// RunStoreContract checks the behaviour every SnapshotStore shares. store must
// be empty.
func RunStoreContract(t *testing.T, store ports.SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := store.Load(ctx); err != nil || found {
		t.Fatalf("empty load = found %v, err %v", found, err)
	}

	first := Snapshot(t, 1)
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, found, err := store.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load = found %v, err %v", found, err)
	}
	if !reflect.DeepEqual(loaded, first) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, first)
	}

	second := Snapshot(t, 2)
	second.Game.RollCount = 2
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, _, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after overwrite: %v", err)
	}
	if loaded.Version != 2 || loaded.Game.RollCount != 2 {
		t.Fatalf("overwrite not visible: v%d rolls %d", loaded.Version, loaded.Game.RollCount)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Save(cancelled, first); err == nil {
		t.Fatalf("save with cancelled context succeeded")
	}
}
