package domain

import (
	"errors"
	"math/rand"
	"testing"
)

func TestRollKeepsMaskedDice(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	current := Dice{6, 6, 6, 6, 6}
	keep := KeepMask{true, false, true, false, false}

	for i := 0; i < 100; i++ {
		next := Roll(rng, current, keep)
		if next[0] != 6 || next[2] != 6 {
			t.Fatalf("kept dice changed: %v", next)
		}
		if !next.Valid() {
			t.Fatalf("roll out of range: %v", next)
		}
	}
	if current != (Dice{6, 6, 6, 6, 6}) {
		t.Fatalf("roll mutated input: %v", current)
	}
}

func TestRollCoversAllFaces(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		for _, v := range Roll(rng, FreshDice(), KeepMask{}) {
			seen[v] = true
		}
	}
	for face := 1; face <= DieFaces; face++ {
		if !seen[face] {
			t.Fatalf("face %d never rolled", face)
		}
	}
}

func TestKeepMaskFromIndices(t *testing.T) {
	mask, err := KeepMaskFromIndices([]int{4, 0, 4})
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	if mask != (KeepMask{true, false, false, false, true}) {
		t.Fatalf("mask = %v", mask)
	}
	if got := mask.Indices(); len(got) != 2 || got[0] != 0 || got[1] != 4 {
		t.Fatalf("indices = %v", got)
	}

	for _, bad := range []int{-1, 5} {
		if _, err := KeepMaskFromIndices([]int{bad}); !errors.Is(err, ErrInvalidDieIndex) {
			t.Fatalf("index %d: err = %v, want ErrInvalidDieIndex", bad, err)
		}
	}
}
