package app

import "yahtzee/internal/domain"

// PhaseCannotJoin is reported to unknown clients while a game is running.
const PhaseCannotJoin = "cannotJoin"

const reasonInProgress = "Game already in progress"

// PlayerView is the public face of a PlayerRecord.
type PlayerView struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Color domain.Color `json:"color"`
	Ready bool         `json:"ready"`
}

// GameView is the read-only state shown to clients and the display.
type GameView struct {
	Phase         string                       `json:"phase"`
	Reason        string                       `json:"reason,omitempty"`
	Players       []PlayerView                 `json:"players,omitempty"`
	CurrentPlayer string                       `json:"currentPlayer,omitempty"`
	Dice          domain.Dice                  `json:"dice"`
	DiceKept      domain.KeepMask              `json:"diceKept"`
	RollCount     int                          `json:"rollCount"`
	MaxRolls      int                          `json:"maxRolls"`
	Scores        map[string]domain.Scoresheet `json:"scores,omitempty"`
	Totals        map[string]int               `json:"totals,omitempty"`
	TurnOrder     []string                     `json:"turnOrder,omitempty"`
	Winner        string                       `json:"winner,omitempty"`
	IsKnown       bool                         `json:"isKnown"`
	SavedName     string                       `json:"savedName,omitempty"`
	Version       uint64                       `json:"version"`
}

func playerView(rec domain.PlayerRecord) PlayerView {
	return PlayerView{ID: rec.ConnID, Name: rec.Name, Color: rec.Color, Ready: rec.Ready}
}

func cannotJoinView() GameView {
	return GameView{Phase: PhaseCannotJoin, Reason: reasonInProgress}
}

// buildView must run inside the gate.
func buildView(sess *domain.SessionStore, game *domain.GameState, version uint64) GameView {
	players := sess.Players()
	views := make([]PlayerView, 0, len(players))
	for _, rec := range players {
		views = append(views, playerView(rec))
	}

	g := game.Clone()
	totals := make(map[string]int, len(g.Scores))
	for id, sheet := range g.Scores {
		totals[id] = sheet.Total()
	}

	return GameView{
		Phase:         string(g.Phase),
		Players:       views,
		CurrentPlayer: g.CurrentPlayer,
		Dice:          g.Dice,
		DiceKept:      g.DiceKept,
		RollCount:     g.RollCount,
		MaxRolls:      g.MaxRolls,
		Scores:        g.Scores,
		Totals:        totals,
		TurnOrder:     g.TurnOrder,
		Winner:        g.Winner,
		Version:       version,
	}
}
