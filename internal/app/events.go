package app

import "yahtzee/internal/domain"

// EventKind identifies an outbound event. Values are the wire event names.
type EventKind string

const (
	EventJoined          EventKind = "joined"
	EventJoinError       EventKind = "joinError"
	EventPlayerJoined    EventKind = "playerJoined"
	EventPlayerReady     EventKind = "playerReady"
	EventPlayerLeft      EventKind = "playerLeft"
	EventSessionReplaced EventKind = "sessionReplaced"
	EventGameStarted     EventKind = "gameStarted"
	EventDiceRolled      EventKind = "diceRolled"
	EventDiceKept        EventKind = "diceKept"
	EventScoreSubmitted  EventKind = "scoreSubmitted"
	EventGameReset       EventKind = "gameReset"
	EventGameState       EventKind = "gameState"
	EventError           EventKind = "error"
)

// Event is an outbound message with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // connection ids; empty means broadcast
}

// Broadcast reports whether the event goes to every connection.
func (e Event) Broadcast() bool {
	return len(e.Recipients) == 0
}

type JoinedPayload struct {
	PlayerID  string       `json:"playerId"`
	Color     domain.Color `json:"color"`
	GameState GameView     `json:"gameState"`
}

type JoinErrorPayload struct {
	Error string `json:"error"`
}

type PlayerPayload struct {
	Player PlayerView `json:"player"`
}

type SessionReplacedPayload struct {
	Reason string `json:"reason"`
}

type GameStatePayload struct {
	GameState GameView `json:"gameState"`
}

type DiceRolledPayload struct {
	Dice      domain.Dice     `json:"dice"`
	DiceKept  domain.KeepMask `json:"diceKept"`
	RollCount int             `json:"rollCount"`
	Player    string          `json:"player"`
}

type DiceKeptPayload struct {
	DiceKept domain.KeepMask `json:"diceKept"`
	Player   string          `json:"player"`
}

type ScoreSubmittedPayload struct {
	Player       string          `json:"player"`
	Category     domain.Category `json:"category"`
	Score        int             `json:"score"`
	GameFinished bool            `json:"gameFinished"`
	Winner       string          `json:"winner,omitempty"`
	NextPlayer   string          `json:"nextPlayer,omitempty"`
	GameState    GameView        `json:"gameState"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorEvent reports a rejected request to its sender only.
func ErrorEvent(connID string, err error) Event {
	return Event{
		Kind:       EventError,
		Payload:    ErrorPayload{Message: err.Error(), Code: domain.ErrorCode(err)},
		Recipients: []string{connID},
	}
}

// JoinErrorEvent reports a rejected join to its sender only.
func JoinErrorEvent(connID string, err error) Event {
	return Event{
		Kind:       EventJoinError,
		Payload:    JoinErrorPayload{Error: err.Error()},
		Recipients: []string{connID},
	}
}

// GameStateEvent answers an on-demand state request.
func GameStateEvent(connID string, view GameView) Event {
	return Event{Kind: EventGameState, Payload: view, Recipients: []string{connID}}
}
