package domain

import (
	"fmt"
	"time"
)

// Snapshot is the unit of persistence: the whole session plus the game.
type Snapshot struct {
	Version    uint64            `json:"version"`
	SavedAt    time.Time         `json:"savedAt"`
	Players    []PlayerRecord    `json:"players"`
	ClientKeys map[string]string `json:"clientKeys"`
	Memory     map[string]Recall `json:"memory"`
	UsedColors []Color           `json:"usedColors"`
	Game       GameState         `json:"game"`
}

// Capture copies the live stores into a Snapshot.
func Capture(s *SessionStore, g *GameState, version uint64, now time.Time) Snapshot {
	snap := Snapshot{
		Version:    version,
		SavedAt:    now,
		Players:    s.Players(),
		ClientKeys: make(map[string]string, len(s.byKey)),
		Memory:     make(map[string]Recall, len(s.memory)),
		UsedColors: s.colors.Used(),
		Game:       g.Clone(),
	}
	for k, id := range s.byKey {
		snap.ClientKeys[k] = id
	}
	for k, r := range s.memory {
		snap.Memory[k] = r.clone()
	}
	return snap
}

// Restore rebuilds live stores from snap. Callers validate first.
func Restore(snap Snapshot) (*SessionStore, *GameState) {
	s := NewSessionStore()
	for _, rec := range snap.Players {
		r := rec
		s.players[r.ConnID] = &r
		s.order = append(s.order, r.ConnID)
	}
	for k, id := range snap.ClientKeys {
		s.byKey[k] = id
	}
	for k, r := range snap.Memory {
		s.memory[k] = r.clone()
	}
	s.colors = RestoreColorPool(snap.UsedColors)

	g := snap.Game.Clone()
	if g.Scores == nil {
		g.Scores = make(map[string]Scoresheet)
	}
	if g.TurnOrder == nil {
		g.TurnOrder = []string{}
	}
	return s, &g
}

// ShouldReset reports whether a recovered snapshot is stale: the game is
// over, nobody was connected, or nobody had scored yet.
func ShouldReset(snap Snapshot) bool {
	if snap.Game.Phase == PhaseFinished {
		return true
	}
	if len(snap.Players) == 0 {
		return true
	}
	return !snap.Game.HasScores()
}

// ResetSnapshot is a fresh waiting-phase snapshot that keeps only what the
// session remembers about client keys.
func ResetSnapshot(prev Snapshot, version uint64, now time.Time) Snapshot {
	s := NewSessionStore()
	for k, r := range prev.Memory {
		s.memory[k] = r.clone()
	}
	return Capture(s, NewGameState(), version, now)
}

// Validate checks that snap can be restored without breaking invariants.
func (snap Snapshot) Validate() error {
	if err := snap.Game.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(snap.Players))
	for _, rec := range snap.Players {
		if rec.ConnID == "" {
			return fmt.Errorf("%w: player without connection id", ErrCorruptSnapshot)
		}
		if seen[rec.ConnID] {
			return fmt.Errorf("%w: duplicate player %s", ErrCorruptSnapshot, rec.ConnID)
		}
		seen[rec.ConnID] = true
	}
	for k, id := range snap.ClientKeys {
		if !seen[id] {
			return fmt.Errorf("%w: client key %s points at unknown player %s", ErrCorruptSnapshot, k, id)
		}
	}
	return nil
}

func (r Recall) clone() Recall {
	if r.Color != nil {
		c := *r.Color
		r.Color = &c
	}
	return r
}
