package domain

import (
	"fmt"
	"math/rand"
)

const (
	// DiceCount is the number of dice in play on every turn.
	DiceCount = 5
	// DieFaces is the number of faces on each die.
	DieFaces = 6
	// MaxRolls is the number of rolls a player may make per turn.
	MaxRolls = 3
)

// Dice is the ordered five-die vector. Values are in [1,6].
type Dice [DiceCount]int

// KeepMask marks, by index, which dice survive a reroll.
type KeepMask [DiceCount]bool

// FreshDice is the dice vector at the start of every turn.
func FreshDice() Dice {
	return Dice{1, 1, 1, 1, 1}
}

// Sum returns the total of all five dice.
func (d Dice) Sum() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

// Valid reports whether every die shows a face in [1,6].
func (d Dice) Valid() bool {
	for _, v := range d {
		if v < 1 || v > DieFaces {
			return false
		}
	}
	return true
}

// Roll carries over kept dice and draws the rest uniformly from [1,6].
// It touches neither roll counters nor kept flags.
func Roll(rng *rand.Rand, current Dice, keep KeepMask) Dice {
	next := current
	for i := range next {
		if keep[i] {
			continue
		}
		next[i] = rng.Intn(DieFaces) + 1
	}
	return next
}

// KeepMaskFromIndices builds a mask from die positions. Duplicates are
// tolerated; anything outside [0,4] is rejected.
func KeepMaskFromIndices(indices []int) (KeepMask, error) {
	var mask KeepMask
	for _, idx := range indices {
		if idx < 0 || idx >= DiceCount {
			return KeepMask{}, fmt.Errorf("%w (got %d)", ErrInvalidDieIndex, idx)
		}
		mask[idx] = true
	}
	return mask, nil
}

// Indices returns the kept positions in ascending order.
func (m KeepMask) Indices() []int {
	out := make([]int, 0, DiceCount)
	for i, kept := range m {
		if kept {
			out = append(out, i)
		}
	}
	return out
}
