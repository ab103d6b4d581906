package domain

import (
	"fmt"
	"math/rand"
)

// Phase is the coarse session state.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Valid reports whether p is one of the three phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhasePlaying, PhaseFinished:
		return true
	}
	return false
}

// GameState is the turn-based state machine. Methods validate fully before
// mutating, so a rejected call leaves the state untouched.
type GameState struct {
	Phase         Phase                 `json:"phase"`
	CurrentPlayer string                `json:"currentPlayer,omitempty"`
	Dice          Dice                  `json:"dice"`
	DiceKept      KeepMask              `json:"diceKept"`
	RollCount     int                   `json:"rollCount"`
	MaxRolls      int                   `json:"maxRolls"`
	Scores        map[string]Scoresheet `json:"scores"`
	TurnOrder     []string              `json:"turnOrder"`
	Winner        string                `json:"winner,omitempty"`
}

// ScoreOutcome is the result of a successful RequestScore.
type ScoreOutcome struct {
	Player       string
	Category     Category
	Points       int
	GameFinished bool
	Winner       string
	NextPlayer   string
}

// NewGameState returns a game waiting for players.
func NewGameState() *GameState {
	g := &GameState{}
	g.Reset()
	return g
}

// Reset reinitialises the game to the waiting phase.
func (g *GameState) Reset() {
	*g = GameState{
		Phase:     PhaseWaiting,
		Dice:      FreshDice(),
		MaxRolls:  MaxRolls,
		Scores:    make(map[string]Scoresheet),
		TurnOrder: []string{},
	}
}

// StartGame fixes the turn order, gives every participant an empty sheet and
// rolls once for the first player.
func (g *GameState) StartGame(order []string, rng *rand.Rand) error {
	if g.Phase != PhaseWaiting {
		return ErrNotWaiting
	}
	if len(order) == 0 {
		return ErrNoPlayers
	}

	g.TurnOrder = append([]string(nil), order...)
	g.Scores = make(map[string]Scoresheet, len(order))
	for _, id := range order {
		g.Scores[id] = Scoresheet{}
	}
	g.CurrentPlayer = order[0]
	g.Winner = ""
	g.resetTurn()
	g.Phase = PhasePlaying

	g.Dice = Roll(rng, g.Dice, g.DiceKept)
	g.RollCount = 1
	return nil
}

// RequestRoll rerolls every die not in keep for the current player.
func (g *GameState) RequestRoll(connID string, keep KeepMask, rng *rand.Rand) (Dice, error) {
	if err := g.checkTurn(connID); err != nil {
		return Dice{}, err
	}
	if g.RollCount >= g.MaxRolls {
		return Dice{}, ErrRollLimit
	}
	g.Dice = Roll(rng, g.Dice, keep)
	g.DiceKept = keep
	g.RollCount++
	return g.Dice, nil
}

// SetKept records which dice the current player intends to keep.
func (g *GameState) SetKept(connID string, keep KeepMask) error {
	if err := g.checkTurn(connID); err != nil {
		return err
	}
	g.DiceKept = keep
	return nil
}

// RequestScore banks the current dice in category c. The game finishes once
// every sheet is complete; otherwise the turn passes on with fresh dice and no
// roll taken.
func (g *GameState) RequestScore(connID string, c Category) (ScoreOutcome, error) {
	if err := g.checkTurn(connID); err != nil {
		return ScoreOutcome{}, err
	}
	if !c.Valid() {
		return ScoreOutcome{}, fmt.Errorf("%w %q", ErrUnknownCategory, c)
	}
	sheet := g.Scores[connID]
	if sheet.Has(c) {
		return ScoreOutcome{}, fmt.Errorf("%w: %s", ErrCategoryTaken, c)
	}
	if sheet == nil {
		sheet = Scoresheet{}
		g.Scores[connID] = sheet
	}

	points := Score(g.Dice, c)
	sheet[c] = points
	out := ScoreOutcome{Player: connID, Category: c, Points: points}

	if g.allComplete() {
		g.Phase = PhaseFinished
		g.Winner = g.DetermineWinner()
		g.CurrentPlayer = ""
		out.GameFinished = true
		out.Winner = g.Winner
		return out, nil
	}

	g.CurrentPlayer = g.nextPlayer(connID)
	g.resetTurn()
	out.NextPlayer = g.CurrentPlayer
	return out, nil
}

// DetermineWinner returns the participant with the highest total. Ties go to
// whoever comes first in the turn order.
func (g *GameState) DetermineWinner() string {
	winner, best := "", 0
	for _, id := range g.TurnOrder {
		total := g.Scores[id].Total()
		if winner == "" || total > best {
			winner, best = id, total
		}
	}
	return winner
}

// IsParticipant reports whether connID is in the turn order.
func (g *GameState) IsParticipant(connID string) bool {
	for _, id := range g.TurnOrder {
		if id == connID {
			return true
		}
	}
	return false
}

// RenameParticipant moves everything recorded under oldID to newID. It
// returns false when oldID is not a participant.
func (g *GameState) RenameParticipant(oldID, newID string) bool {
	if oldID == newID || !g.IsParticipant(oldID) {
		return false
	}
	for i, id := range g.TurnOrder {
		if id == oldID {
			g.TurnOrder[i] = newID
		}
	}
	if sheet, ok := g.Scores[oldID]; ok {
		delete(g.Scores, oldID)
		g.Scores[newID] = sheet
	}
	if g.CurrentPlayer == oldID {
		g.CurrentPlayer = newID
	}
	if g.Winner == oldID {
		g.Winner = newID
	}
	return true
}

// HasScores reports whether anyone has banked at least one category.
func (g *GameState) HasScores() bool {
	for _, sheet := range g.Scores {
		if len(sheet) > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (g *GameState) Clone() GameState {
	out := *g
	out.TurnOrder = append([]string{}, g.TurnOrder...)
	out.Scores = make(map[string]Scoresheet, len(g.Scores))
	for id, sheet := range g.Scores {
		out.Scores[id] = sheet.Clone()
	}
	return out
}

// Validate checks the structural invariants of a recovered state.
func (g *GameState) Validate() error {
	if !g.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrCorruptSnapshot, g.Phase)
	}
	if g.MaxRolls != MaxRolls {
		return fmt.Errorf("%w: maxRolls %d", ErrCorruptSnapshot, g.MaxRolls)
	}
	if g.RollCount < 0 || g.RollCount > g.MaxRolls {
		return fmt.Errorf("%w: rollCount %d", ErrCorruptSnapshot, g.RollCount)
	}
	if !g.Dice.Valid() {
		return fmt.Errorf("%w: dice %v", ErrCorruptSnapshot, g.Dice)
	}
	if g.Phase == PhasePlaying && !g.IsParticipant(g.CurrentPlayer) {
		return fmt.Errorf("%w: current player %q not in turn order", ErrCorruptSnapshot, g.CurrentPlayer)
	}
	for id, sheet := range g.Scores {
		for c := range sheet {
			if !c.Valid() {
				return fmt.Errorf("%w: player %s has unknown category %q", ErrCorruptSnapshot, id, c)
			}
		}
	}
	return nil
}

func (g *GameState) checkTurn(connID string) error {
	if g.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	if connID != g.CurrentPlayer {
		return ErrNotYourTurn
	}
	return nil
}

func (g *GameState) resetTurn() {
	g.Dice = FreshDice()
	g.DiceKept = KeepMask{}
	g.RollCount = 0
}

func (g *GameState) nextPlayer(current string) string {
	for i, id := range g.TurnOrder {
		if id == current {
			return g.TurnOrder[(i+1)%len(g.TurnOrder)]
		}
	}
	return g.TurnOrder[0]
}

func (g *GameState) allComplete() bool {
	for _, id := range g.TurnOrder {
		if !g.Scores[id].Complete() {
			return false
		}
	}
	return true
}
