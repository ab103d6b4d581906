package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"yahtzee/internal/domain"
	"yahtzee/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "yahtzee.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	storagetest.RunStoreContract(t, store)
}

func TestLoadCorruptPayload(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "yahtzee.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	err = store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(snapshotKey), []byte("not json"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, found, err := store.Load(context.Background())
	if !found || !errors.Is(err, domain.ErrCorruptSnapshot) {
		t.Fatalf("found=%v err=%v, want corrupt", found, err)
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yahtzee.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Save(context.Background(), storagetest.Snapshot(t, 7)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	snap, found, err := reopened.Load(context.Background())
	if err != nil || !found || snap.Version != 7 {
		t.Fatalf("load after reopen = v%d found=%v err=%v", snap.Version, found, err)
	}
}
