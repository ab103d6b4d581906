package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yahtzee/internal/domain"
	"yahtzee/internal/ports"
)

const saveTimeout = 5 * time.Second

// persister writes snapshots captured inside the gate. Writes happen after
// the gate is released, so two callers may race here; the version check keeps
// an older snapshot from overwriting a newer one.
type persister struct {
	mu    sync.Mutex
	store ports.SnapshotStore
	saved uint64
	log   zerolog.Logger
}

func (p *persister) save(ctx context.Context, snap domain.Snapshot) {
	if p.store == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Version <= p.saved {
		p.log.Debug().Uint64("version", snap.Version).Uint64("saved", p.saved).Msg("skip stale snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := p.store.Save(ctx, snap); err != nil {
		p.log.Error().Err(err).Uint64("version", snap.Version).Msg("save snapshot")
		return
	}
	p.saved = snap.Version
}

func (p *persister) markSaved(version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if version > p.saved {
		p.saved = version
	}
}
