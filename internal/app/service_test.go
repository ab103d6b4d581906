package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"yahtzee/internal/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	snap    domain.Snapshot
	found   bool
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Save(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap, m.found = snap, true
	m.saves++
	return nil
}

func (m *memStore) Load(context.Context) (domain.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.found, m.loadErr
}

func (m *memStore) Close() error { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func newTestService(store *memStore) *Service {
	opts := []Option{WithClock(func() time.Time { return fixedNow })}
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	return NewService(rand.New(rand.NewSource(42)), opts...)
}

func findEvent(evs []Event, kind EventKind) (Event, bool) {
	for _, ev := range evs {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

// startTwoPlayer joins alice (c1/k1) and bob (c2/k2) and readies both.
func startTwoPlayer(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Join(ctx, "c1", "k1", "Alice"); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := svc.Join(ctx, "c2", "k2", "Bob"); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if evs := svc.Ready(ctx, "c1"); len(evs) != 1 {
		t.Fatalf("ready alice events = %d, want 1", len(evs))
	}
	evs := svc.Ready(ctx, "c2")
	if _, ok := findEvent(evs, EventGameStarted); !ok {
		t.Fatalf("expected game started event, got %+v", evs)
	}
}

func TestJoinEvents(t *testing.T) {
	svc := newTestService(nil)
	evs, err := svc.Join(context.Background(), "c1", "k1", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	joined, ok := findEvent(evs, EventJoined)
	if !ok || !reflect.DeepEqual(joined.Recipients, []string{"c1"}) {
		t.Fatalf("joined event = %+v", joined)
	}
	payload := joined.Payload.(JoinedPayload)
	if payload.Color != domain.Palette[0] || payload.GameState.Phase != string(domain.PhaseWaiting) {
		t.Fatalf("payload = %+v", payload)
	}
	if !payload.GameState.IsKnown || payload.GameState.SavedName != "Alice" {
		t.Fatalf("view should remember the name: %+v", payload.GameState)
	}
	if ev, ok := findEvent(evs, EventPlayerJoined); !ok || !ev.Broadcast() {
		t.Fatalf("expected broadcast playerJoined, got %+v", evs)
	}

	if _, err := svc.Join(context.Background(), "c2", "k2", "  "); !errors.Is(err, domain.ErrEmptyName) {
		t.Fatalf("blank name err = %v", err)
	}
}

func TestEndToEndOpeningTurns(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	startTwoPlayer(t, svc)

	view := svc.View()
	if view.Phase != string(domain.PhasePlaying) || view.CurrentPlayer != "c1" || view.RollCount != 1 {
		t.Fatalf("view after start = %+v", view)
	}
	if !reflect.DeepEqual(view.TurnOrder, []string{"c1", "c2"}) {
		t.Fatalf("turn order = %v", view.TurnOrder)
	}

	svc.game.Dice = domain.Dice{4, 4, 4, 4, 4}
	evs, err := svc.ScoreCategory(ctx, "c1", "yahtzee")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	sub := evs[0].Payload.(ScoreSubmittedPayload)
	if sub.Score != 50 || sub.GameFinished || sub.NextPlayer != "c2" {
		t.Fatalf("score payload = %+v", sub)
	}
	if sub.GameState.Dice != domain.FreshDice() || sub.GameState.RollCount != 0 {
		t.Fatalf("turn not reset: %+v", sub.GameState)
	}

	evs, err = svc.RollDice(ctx, "c2", nil)
	if err != nil {
		t.Fatalf("bob roll: %v", err)
	}
	rolled := evs[0].Payload.(DiceRolledPayload)
	if rolled.RollCount != 1 || rolled.Player != "c2" || !evs[0].Broadcast() {
		t.Fatalf("rolled = %+v", rolled)
	}
}

func TestRejectionsLeaveStateAndStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)
	startTwoPlayer(t, svc)

	saves := store.saveCount()
	before := svc.Snapshot()

	tests := []struct {
		name string
		call func() error
		code string
	}{
		{"roll out of turn", func() error { _, err := svc.RollDice(ctx, "c2", nil); return err }, domain.CodeTurn},
		{"keep out of turn", func() error { _, err := svc.KeepDice(ctx, "c2", []int{0}); return err }, domain.CodeTurn},
		{"bad die index", func() error { _, err := svc.RollDice(ctx, "c1", []int{7}); return err }, domain.CodeValidation},
		{"unknown category", func() error { _, err := svc.ScoreCategory(ctx, "c1", "sevens"); return err }, domain.CodeValidation},
		{"stranger joins", func() error { _, err := svc.Join(ctx, "c9", "k9", "Eve"); return err }, domain.CodeValidation},
		{"new game mid play", func() error { _, err := svc.NewGame(ctx, "c1"); return err }, domain.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if code := domain.ErrorCode(err); code != tt.code {
				t.Fatalf("code = %s, want %s (%v)", code, tt.code, err)
			}
			ev := ErrorEvent("c2", err)
			if ev.Broadcast() || ev.Payload.(ErrorPayload).Code != tt.code {
				t.Fatalf("error event = %+v", ev)
			}
		})
	}

	if !reflect.DeepEqual(before, svc.Snapshot()) {
		t.Fatalf("rejected operations changed state")
	}
	if store.saveCount() != saves {
		t.Fatalf("rejected operations persisted: %d -> %d", saves, store.saveCount())
	}
}

func TestRollLimitThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	startTwoPlayer(t, svc)
	for i := 0; i < 2; i++ {
		if _, err := svc.RollDice(ctx, "c1", []int{0}); err != nil {
			t.Fatalf("roll: %v", err)
		}
	}
	_, err := svc.RollDice(ctx, "c1", nil)
	if !errors.Is(err, domain.ErrRollLimit) || domain.ErrorCode(err) != domain.CodeRollLimit {
		t.Fatalf("err = %v, want roll limit", err)
	}
}

func TestDuplicateCategoryCode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	startTwoPlayer(t, svc)
	if _, err := svc.ScoreCategory(ctx, "c1", "chance"); err != nil {
		t.Fatalf("score: %v", err)
	}
	if _, err := svc.ScoreCategory(ctx, "c2", "ones"); err != nil {
		t.Fatalf("score: %v", err)
	}
	_, err := svc.ScoreCategory(ctx, "c1", "chance")
	if domain.ErrorCode(err) != domain.CodeDuplicateCategory {
		t.Fatalf("err = %v, want duplicate category", err)
	}
}

func TestGameStateForStrangerDuringPlay(t *testing.T) {
	svc := newTestService(nil)
	if got := svc.GameStateFor("k9").Phase; got != string(domain.PhaseWaiting) {
		t.Fatalf("lobby phase = %s", got)
	}
	startTwoPlayer(t, svc)

	view := svc.GameStateFor("k9")
	if view.Phase != PhaseCannotJoin || view.Reason == "" {
		t.Fatalf("stranger view = %+v", view)
	}
	if got := svc.GameStateFor("k1"); got.Phase != string(domain.PhasePlaying) || got.SavedName != "Alice" {
		t.Fatalf("participant view = %+v", got)
	}
}

func TestParticipantRejoinsMidGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	startTwoPlayer(t, svc)
	colour := svc.View().Players[0].Color

	if evs := svc.Disconnect(ctx, "c1"); len(evs) != 1 || evs[0].Kind != EventPlayerLeft {
		t.Fatalf("disconnect events = %+v", evs)
	}
	if got := svc.GameStateFor("k1").Phase; got != string(domain.PhasePlaying) {
		t.Fatalf("disconnected participant should still see the game, got %s", got)
	}

	evs, err := svc.Join(ctx, "c3", "k1", "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	joined, _ := findEvent(evs, EventJoined)
	if joined.Payload.(JoinedPayload).Color != colour {
		t.Fatalf("rejoin colour changed")
	}
	view := svc.View()
	if view.CurrentPlayer != "c3" || !reflect.DeepEqual(view.TurnOrder, []string{"c3", "c2"}) {
		t.Fatalf("seat not transferred: %+v", view)
	}
	if _, err := svc.RollDice(ctx, "c3", nil); err != nil {
		t.Fatalf("rejoined player cannot roll: %v", err)
	}
}

func TestRejoinEvictsOpenConnection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	svc.Join(ctx, "c1", "k1", "Alice")
	evs, err := svc.Join(ctx, "c2", "k1", "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	ev, ok := findEvent(evs, EventSessionReplaced)
	if !ok || !reflect.DeepEqual(ev.Recipients, []string{"c1"}) {
		t.Fatalf("expected sessionReplaced to c1, got %+v", evs)
	}
	if players := svc.View().Players; len(players) != 1 || players[0].ID != "c2" {
		t.Fatalf("players = %+v", players)
	}
}

func TestReadyUnknownIsNoop(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	if evs := svc.Ready(context.Background(), "ghost"); evs != nil {
		t.Fatalf("events = %+v", evs)
	}
	if evs := svc.Disconnect(context.Background(), "ghost"); evs != nil {
		t.Fatalf("events = %+v", evs)
	}
	if store.saveCount() != 0 {
		t.Fatalf("no-op persisted")
	}
}

func TestNewGameAfterFinish(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	svc.Join(ctx, "c1", "k1", "Solo")
	svc.Ready(ctx, "c1")

	var last ScoreSubmittedPayload
	for _, c := range domain.AllCategories {
		evs, err := svc.ScoreCategory(ctx, "c1", string(c))
		if err != nil {
			t.Fatalf("score %s: %v", c, err)
		}
		last = evs[0].Payload.(ScoreSubmittedPayload)
	}
	if !last.GameFinished || last.Winner != "c1" {
		t.Fatalf("final = %+v", last)
	}

	evs, err := svc.NewGame(ctx, "c1")
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	reset := evs[0].Payload.(GameStatePayload).GameState
	if reset.Phase != string(domain.PhaseWaiting) || len(reset.Players) != 1 || reset.Players[0].Ready {
		t.Fatalf("reset view = %+v", reset)
	}
	if _, err := svc.NewGame(ctx, "ghost"); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Fatalf("ghost err = %v", err)
	}
}

func TestEveryMutationPersistsNewerVersion(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	svc := newTestService(store)
	startTwoPlayer(t, svc)
	if store.saveCount() != 4 {
		t.Fatalf("saves = %d, want 4", store.saveCount())
	}
	if store.snap.Version != 4 || store.snap.Game.Phase != domain.PhasePlaying {
		t.Fatalf("stored snapshot = v%d %s", store.snap.Version, store.snap.Game.Phase)
	}

	store.saveErr = errors.New("disk full")
	if _, err := svc.RollDice(ctx, "c1", nil); err != nil {
		t.Fatalf("roll must succeed despite save failure: %v", err)
	}
}

func TestPersisterSkipsOlderSnapshots(t *testing.T) {
	store := &memStore{}
	p := &persister{store: store}
	p.save(context.Background(), domain.Snapshot{Version: 2})
	p.save(context.Background(), domain.Snapshot{Version: 1})
	if store.snap.Version != 2 || store.saves != 1 {
		t.Fatalf("stored v%d after %d saves", store.snap.Version, store.saves)
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("live game", func(t *testing.T) {
		src := newTestService(nil)
		startTwoPlayer(t, src)
		src.ScoreCategory(ctx, "c1", "chance")
		snap := src.Snapshot()

		store := &memStore{snap: snap, found: true}
		svc := newTestService(store)
		if err := svc.Restore(ctx); err != nil {
			t.Fatalf("restore: %v", err)
		}
		if !reflect.DeepEqual(svc.Snapshot(), snap) {
			t.Fatalf("restored state differs")
		}
		if _, err := svc.RollDice(ctx, "c2", nil); err != nil {
			t.Fatalf("roll after restore: %v", err)
		}
		if store.snap.Version != snap.Version+1 {
			t.Fatalf("version = %d, want %d", store.snap.Version, snap.Version+1)
		}
	})

	t.Run("stale game resets and keeps names", func(t *testing.T) {
		src := newTestService(nil)
		startTwoPlayer(t, src)
		snap := src.Snapshot()

		store := &memStore{snap: snap, found: true}
		svc := newTestService(store)
		if err := svc.Restore(ctx); err != nil {
			t.Fatalf("restore: %v", err)
		}
		view := svc.View()
		if view.Phase != string(domain.PhaseWaiting) || len(view.Players) != 0 {
			t.Fatalf("view = %+v", view)
		}
		if name, known := svc.Identity("k2"); !known || name != "Bob" {
			t.Fatalf("identity = %q %v", name, known)
		}
		if store.saves != 1 || store.snap.Version != snap.Version+1 {
			t.Fatalf("reset not persisted: saves=%d v%d", store.saves, store.snap.Version)
		}
	})

	t.Run("corrupt snapshot resets", func(t *testing.T) {
		store := &memStore{loadErr: fmt.Errorf("%w: bad json", domain.ErrCorruptSnapshot)}
		svc := newTestService(store)
		if err := svc.Restore(ctx); err != nil {
			t.Fatalf("restore: %v", err)
		}
		if store.saves != 1 || store.snap.Game.Phase != domain.PhaseWaiting {
			t.Fatalf("reset not persisted")
		}
	})

	t.Run("invalid snapshot resets and keeps names", func(t *testing.T) {
		src := newTestService(nil)
		startTwoPlayer(t, src)
		src.ScoreCategory(ctx, "c1", "chance")
		snap := src.Snapshot()
		snap.Game.CurrentPlayer = "ghost"

		store := &memStore{snap: snap, found: true}
		svc := newTestService(store)
		if err := svc.Restore(ctx); err != nil {
			t.Fatalf("restore: %v", err)
		}
		if view := svc.View(); view.Phase != string(domain.PhaseWaiting) || len(view.Players) != 0 {
			t.Fatalf("view = %+v", view)
		}
		if name, known := svc.Identity("k1"); !known || name != "Alice" {
			t.Fatalf("identity = %q %v", name, known)
		}
		if store.saves != 1 || store.snap.Version != snap.Version+1 {
			t.Fatalf("reset not persisted: saves=%d v%d", store.saves, store.snap.Version)
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		store := &memStore{loadErr: errors.New("connection refused")}
		svc := newTestService(store)
		if err := svc.Restore(ctx); err == nil {
			t.Fatalf("expected error")
		}
		if svc.View().Phase != string(domain.PhaseWaiting) {
			t.Fatalf("service unusable after failed restore")
		}
	})
}

func TestConcurrentRollsRespectLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&memStore{})
	startTwoPlayer(t, svc)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RollDice(ctx, "c1", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrRollLimit):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 2 || limited != 18 {
		t.Fatalf("ok=%d limited=%d, want 2 and 18", ok, limited)
	}
	if got := svc.View().RollCount; got != domain.MaxRolls {
		t.Fatalf("rollCount = %d", got)
	}
}

func TestConcurrentJoinsGetDistinctColours(t *testing.T) {
	svc := newTestService(&memStore{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			if _, err := svc.Join(context.Background(), id, "k"+id, "P"+id); err != nil {
				t.Errorf("join %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[domain.Color]bool)
	for _, p := range svc.View().Players {
		if seen[p.Color] {
			t.Fatalf("colour %v shared", p.Color)
		}
		seen[p.Color] = true
	}
	if len(seen) != 10 {
		t.Fatalf("players = %d, want 10", len(seen))
	}
}
