package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every rejection returned by this package wraps exactly one of
// these so callers can route it with errors.Is.
var (
	ErrValidation      = errors.New("invalid request")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrRollLimit       = errors.New("no rolls remaining")
	ErrCategoryTaken   = errors.New("category already scored")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

var (
	ErrEmptyName       = fmt.Errorf("%w: name is required", ErrValidation)
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrInvalidDieIndex = fmt.Errorf("%w: die index must be between 0 and 4", ErrValidation)
	ErrGameInProgress  = fmt.Errorf("%w: game already in progress", ErrValidation)
	ErrNotWaiting      = fmt.Errorf("%w: game is not waiting for players", ErrValidation)
	ErrNotFinished     = fmt.Errorf("%w: game has not finished", ErrValidation)
	ErrNoPlayers       = fmt.Errorf("%w: no players to start with", ErrValidation)
	ErrUnknownPlayer   = fmt.Errorf("%w: player has not joined", ErrValidation)
	ErrNotPlaying      = fmt.Errorf("%w: game is not being played", ErrNotYourTurn)
)

// Client-facing error codes.
const (
	CodeValidation        = "validation"
	CodeTurn              = "turn"
	CodeRollLimit         = "roll_limit"
	CodeDuplicateCategory = "duplicate_category"
	CodeInternal          = "internal"
)

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotYourTurn):
		return CodeTurn
	case errors.Is(err, ErrRollLimit):
		return CodeRollLimit
	case errors.Is(err, ErrCategoryTaken):
		return CodeDuplicateCategory
	default:
		return CodeInternal
	}
}
