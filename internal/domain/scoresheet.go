package domain

// Scoresheet records the points a player banked per category. A key is
// written at most once.
type Scoresheet map[Category]int

// Has reports whether c has already been scored.
func (s Scoresheet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// Complete reports whether all thirteen boxes are filled.
func (s Scoresheet) Complete() bool {
	for _, c := range AllCategories {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// UpperSubtotal sums ones..sixes.
func (s Scoresheet) UpperSubtotal() int {
	total := 0
	for _, c := range UpperCategories {
		total += s[c]
	}
	return total
}

// Bonus returns the upper-section bonus earned so far.
func (s Scoresheet) Bonus() int {
	if s.UpperSubtotal() >= UpperBonusThreshold {
		return UpperBonus
	}
	return 0
}

// LowerSubtotal sums the seven combination boxes.
func (s Scoresheet) LowerSubtotal() int {
	total := 0
	for _, c := range LowerCategories {
		total += s[c]
	}
	return total
}

// Total is upper subtotal plus bonus plus lower subtotal.
func (s Scoresheet) Total() int {
	return s.UpperSubtotal() + s.Bonus() + s.LowerSubtotal()
}

// Clone returns an independent copy.
func (s Scoresheet) Clone() Scoresheet {
	out := make(Scoresheet, len(s))
	for c, v := range s {
		out[c] = v
	}
	return out
}
