package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yahtzee/internal/domain"
	"yahtzee/internal/ports"
)

// Service owns the session and the game. Every exported mutation runs in one
// acquisition of mu, captures the snapshot and events it produced, releases
// the lock and only then persists.
type Service struct {
	mu      sync.Mutex
	rng     *rand.Rand
	now     func() time.Time
	log     zerolog.Logger
	session *domain.SessionStore
	game    *domain.GameState
	version uint64

	persist *persister
}

// Option customises a Service.
type Option func(*Service)

// WithStore persists every mutation to store.
func WithStore(store ports.SnapshotStore) Option {
	return func(s *Service) { s.persist.store = store }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand, opts ...Option) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Service{
		rng:     rng,
		now:     time.Now,
		log:     zerolog.Nop(),
		session: domain.NewSessionStore(),
		game:    domain.NewGameState(),
		persist: &persister{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "service").Logger()
	s.persist.log = s.log
	return s
}

// Join registers connID under clientKey. During play only keys that already
// take part may join; a rejoining participant keeps its seat and scores.
func (s *Service) Join(ctx context.Context, connID, clientKey, name string) ([]Event, error) {
	s.mu.Lock()
	if s.game.Phase == domain.PhasePlaying && !s.participantKey(clientKey) && !s.game.IsParticipant(connID) {
		s.mu.Unlock()
		s.log.Debug().Str("conn_id", connID).Str("client_key", clientKey).Msg("join rejected: game in progress")
		return nil, domain.ErrGameInProgress
	}

	out, err := s.session.Join(connID, clientKey, name, s.now(), s.rng)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("conn_id", connID).Msg("join rejected")
		return nil, err
	}
	if out.Rejoined() {
		s.game.RenameParticipant(out.PreviousConnID, connID)
	}

	snap := s.capture()
	view := s.viewFor(clientKey)
	s.mu.Unlock()

	s.log.Info().
		Str("conn_id", connID).
		Str("client_key", clientKey).
		Str("name", out.Player.Name).
		Str("previous_conn_id", out.PreviousConnID).
		Msg("player joined")

	events := []Event{{
		Kind:       EventJoined,
		Payload:    JoinedPayload{PlayerID: connID, Color: out.Player.Color, GameState: view},
		Recipients: []string{connID},
	}}
	if out.Evicted {
		events = append(events, Event{
			Kind:       EventSessionReplaced,
			Payload:    SessionReplacedPayload{Reason: "joined from another connection"},
			Recipients: []string{out.PreviousConnID},
		})
	}
	events = append(events, Event{Kind: EventPlayerJoined, Payload: PlayerPayload{Player: playerView(out.Player)}})

	s.persist.save(ctx, snap)
	return events, nil
}

// Ready marks connID ready and starts the game once everyone is.
func (s *Service) Ready(ctx context.Context, connID string) []Event {
	s.mu.Lock()
	rec, ok := s.session.Player(connID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	allReady := s.session.MarkReady(connID, s.now())
	rec.Ready = true

	started := false
	if allReady && s.game.Phase == domain.PhaseWaiting {
		started = s.game.StartGame(s.session.Order(), s.rng) == nil
	}
	snap := s.capture()
	events := []Event{{Kind: EventPlayerReady, Payload: PlayerPayload{Player: playerView(rec)}}}
	if started {
		events = append(events, Event{
			Kind:    EventGameStarted,
			Payload: GameStatePayload{GameState: s.viewLocked()},
		})
	}
	s.mu.Unlock()

	if started {
		s.log.Info().Strs("turn_order", snap.Game.TurnOrder).Str("phase", string(snap.Game.Phase)).Msg("game started")
	}
	s.persist.save(ctx, snap)
	return events
}

// RollDice rerolls the current player's dice, keeping the listed positions.
func (s *Service) RollDice(ctx context.Context, connID string, keep []int) ([]Event, error) {
	mask, err := domain.KeepMaskFromIndices(keep)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	dice, err := s.game.RequestRoll(connID, mask, s.rng)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("conn_id", connID).Msg("roll rejected")
		return nil, err
	}
	s.session.Touch(connID, s.now())
	payload := DiceRolledPayload{Dice: dice, DiceKept: s.game.DiceKept, RollCount: s.game.RollCount, Player: connID}
	snap := s.capture()
	s.mu.Unlock()

	s.persist.save(ctx, snap)
	return []Event{{Kind: EventDiceRolled, Payload: payload}}, nil
}

// KeepDice records which dice the current player holds.
func (s *Service) KeepDice(ctx context.Context, connID string, keep []int) ([]Event, error) {
	mask, err := domain.KeepMaskFromIndices(keep)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.game.SetKept(connID, mask); err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("conn_id", connID).Msg("keep rejected")
		return nil, err
	}
	s.session.Touch(connID, s.now())
	snap := s.capture()
	s.mu.Unlock()

	s.persist.save(ctx, snap)
	return []Event{{Kind: EventDiceKept, Payload: DiceKeptPayload{DiceKept: mask, Player: connID}}}, nil
}

// ScoreCategory banks the current dice for connID.
func (s *Service) ScoreCategory(ctx context.Context, connID, category string) ([]Event, error) {
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	out, err := s.game.RequestScore(connID, cat)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("conn_id", connID).Str("category", category).Msg("score rejected")
		return nil, err
	}
	s.session.Touch(connID, s.now())
	snap := s.capture()
	payload := ScoreSubmittedPayload{
		Player:       out.Player,
		Category:     out.Category,
		Score:        out.Points,
		GameFinished: out.GameFinished,
		Winner:       out.Winner,
		NextPlayer:   out.NextPlayer,
		GameState:    s.viewLocked(),
	}
	s.mu.Unlock()

	ev := s.log.Info().Str("conn_id", connID).Str("category", string(cat)).Int("score", out.Points)
	if out.GameFinished {
		ev.Str("winner", out.Winner).Msg("game finished")
	} else {
		ev.Msg("score recorded")
	}

	s.persist.save(ctx, snap)
	return []Event{{Kind: EventScoreSubmitted, Payload: payload}}, nil
}

// GameStateFor is the view for a client identified only by its key. Strangers
// get a cannotJoin view while a game is running.
func (s *Service) GameStateFor(clientKey string) GameView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.Phase == domain.PhasePlaying && !s.participantKey(clientKey) {
		return cannotJoinView()
	}
	return s.viewFor(clientKey)
}

// Identity reports what the session remembers about clientKey.
func (s *Service) Identity(clientKey string) (name string, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.session.Recall(clientKey)
	return r.Name, ok
}

// Disconnect removes connID. Unknown connections are ignored.
func (s *Service) Disconnect(ctx context.Context, connID string) []Event {
	s.mu.Lock()
	rec, ok := s.session.Remove(connID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	snap := s.capture()
	s.mu.Unlock()

	s.log.Info().Str("conn_id", connID).Str("name", rec.Name).Msg("player left")
	s.persist.save(ctx, snap)
	return []Event{{Kind: EventPlayerLeft, Payload: PlayerPayload{Player: playerView(rec)}}}
}

// NewGame returns a finished game to the lobby. Connected players stay but
// must ready up again.
func (s *Service) NewGame(ctx context.Context, connID string) ([]Event, error) {
	s.mu.Lock()
	if _, ok := s.session.Player(connID); !ok {
		s.mu.Unlock()
		return nil, domain.ErrUnknownPlayer
	}
	if s.game.Phase != domain.PhaseFinished {
		s.mu.Unlock()
		return nil, domain.ErrNotFinished
	}
	s.game.Reset()
	s.session.ClearReady()
	snap := s.capture()
	payload := GameStatePayload{GameState: s.viewLocked()}
	s.mu.Unlock()

	s.log.Info().Str("conn_id", connID).Msg("game reset")
	s.persist.save(ctx, snap)
	return []Event{{Kind: EventGameReset, Payload: payload}}, nil
}

// View is the read-only snapshot polled by the display.
func (s *Service) View() GameView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Capture(s.session, s.game, s.version, s.now())
}

// Restore loads the persisted snapshot. Corrupt or stale snapshots are
// replaced by a fresh lobby that keeps only remembered names, and that reset
// is saved straight away. Only backend failures are returned; the service is
// usable either way.
func (s *Service) Restore(ctx context.Context) error {
	if s.persist.store == nil {
		return nil
	}
	snap, found, err := s.persist.store.Load(ctx)
	if err == nil && found {
		err = snap.Validate()
	}
	switch {
	case errors.Is(err, domain.ErrCorruptSnapshot):
		s.log.Warn().Err(err).Msg("discarding corrupt snapshot")
		// A snapshot that decoded but failed validation still has usable names.
		s.resetFrom(ctx, domain.Snapshot{Version: snap.Version, Memory: snap.Memory})
		return nil
	case err != nil:
		s.log.Error().Err(err).Msg("load snapshot")
		return err
	case !found:
		s.log.Info().Msg("no snapshot, starting fresh")
		return nil
	case domain.ShouldReset(snap):
		s.log.Info().Uint64("version", snap.Version).Str("phase", string(snap.Game.Phase)).Msg("stale snapshot, resetting")
		s.resetFrom(ctx, snap)
		return nil
	}

	s.mu.Lock()
	s.session, s.game = domain.Restore(snap)
	s.version = snap.Version
	s.mu.Unlock()
	s.persist.markSaved(snap.Version)

	s.log.Info().
		Uint64("version", snap.Version).
		Str("phase", string(snap.Game.Phase)).
		Int("players", len(snap.Players)).
		Msg("snapshot restored")
	return nil
}

func (s *Service) resetFrom(ctx context.Context, prev domain.Snapshot) {
	s.mu.Lock()
	s.version = prev.Version + 1
	reset := domain.ResetSnapshot(prev, s.version, s.now())
	s.session, s.game = domain.Restore(reset)
	s.mu.Unlock()
	s.persist.save(ctx, reset)
}

// capture must run inside the gate.
func (s *Service) capture() domain.Snapshot {
	s.version++
	return domain.Capture(s.session, s.game, s.version, s.now())
}

// viewLocked must run inside the gate.
func (s *Service) viewLocked() GameView {
	return buildView(s.session, s.game, s.version)
}

// viewFor must run inside the gate.
func (s *Service) viewFor(clientKey string) GameView {
	view := s.viewLocked()
	if r, ok := s.session.Recall(clientKey); ok {
		view.IsKnown = true
		view.SavedName = r.Name
	}
	return view
}

// participantKey must run inside the gate.
func (s *Service) participantKey(clientKey string) bool {
	conn := s.session.LastConnForKey(clientKey)
	return conn != "" && s.game.IsParticipant(conn)
}
