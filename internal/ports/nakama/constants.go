package nakama

import "yahtzee/internal/app"

const (
	// RpcFindMatch returns the id of the running session match, creating it if needed.
	RpcFindMatch = "find_match"

	// RpcMatchState returns the display view of a match.
	RpcMatchState = "match_state"

	// MatchName is the authoritative match handler name registered with Nakama.
	MatchName = "yahtzee_match"

	// StorageCollection holds the persisted session snapshot.
	StorageCollection = "yahtzee"
	StorageKey        = "snapshot"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpJoin          int64 = 1
	OpReady         int64 = 2
	OpRollDice      int64 = 3
	OpKeepDice      int64 = 4
	OpScoreCategory int64 = 5
	OpGetGameState  int64 = 6
	OpNewGame       int64 = 7

	// Server -> Client events
	OpJoined          int64 = 101
	OpJoinError       int64 = 102
	OpPlayerJoined    int64 = 103
	OpPlayerReady     int64 = 104
	OpPlayerLeft      int64 = 105
	OpSessionReplaced int64 = 106
	OpGameStarted     int64 = 107
	OpDiceRolled      int64 = 108
	OpDiceKept        int64 = 109
	OpScoreSubmitted  int64 = 110
	OpGameReset       int64 = 111
	OpGameState       int64 = 112
	OpError           int64 = 113
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventJoined:          OpJoined,
	app.EventJoinError:       OpJoinError,
	app.EventPlayerJoined:    OpPlayerJoined,
	app.EventPlayerReady:     OpPlayerReady,
	app.EventPlayerLeft:      OpPlayerLeft,
	app.EventSessionReplaced: OpSessionReplaced,
	app.EventGameStarted:     OpGameStarted,
	app.EventDiceRolled:      OpDiceRolled,
	app.EventDiceKept:        OpDiceKept,
	app.EventScoreSubmitted:  OpScoreSubmitted,
	app.EventGameReset:       OpGameReset,
	app.EventGameState:       OpGameState,
	app.EventError:           OpError,
}
