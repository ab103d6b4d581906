package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Category is one of the thirteen scoresheet boxes.
type Category string

const (
	Ones          Category = "ones"
	Twos          Category = "twos"
	Threes        Category = "threes"
	Fours         Category = "fours"
	Fives         Category = "fives"
	Sixes         Category = "sixes"
	ThreeOfAKind  Category = "three_of_a_kind"
	FourOfAKind   Category = "four_of_a_kind"
	FullHouse     Category = "full_house"
	SmallStraight Category = "small_straight"
	LargeStraight Category = "large_straight"
	Yahtzee       Category = "yahtzee"
	Chance        Category = "chance"
)

const (
	// UpperBonusThreshold is the upper-section subtotal that earns the bonus.
	UpperBonusThreshold = 63
	// UpperBonus is awarded once the upper subtotal reaches the threshold.
	UpperBonus = 35

	fullHouseScore     = 25
	smallStraightScore = 30
	largeStraightScore = 40
	yahtzeeScore       = 50
)

// UpperCategories lists ones..sixes in face order.
var UpperCategories = []Category{Ones, Twos, Threes, Fours, Fives, Sixes}

// LowerCategories lists the seven combination boxes.
var LowerCategories = []Category{ThreeOfAKind, FourOfAKind, FullHouse, SmallStraight, LargeStraight, Yahtzee, Chance}

// AllCategories lists every box in scoresheet order.
var AllCategories = append(append([]Category{}, UpperCategories...), LowerCategories...)

// ParseCategory maps a client-supplied name onto a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// Valid reports whether c is one of the thirteen boxes.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Upper reports whether c belongs to the upper section.
func (c Category) Upper() bool {
	return c.face() > 0
}

// face returns the die face counted by an upper box, or 0.
func (c Category) face() int {
	for i, upper := range UpperCategories {
		if c == upper {
			return i + 1
		}
	}
	return 0
}

// Score returns the points dice are worth in category c. It never mutates d.
func Score(d Dice, c Category) int {
	counts := faceCounts(d)

	switch c {
	case Ones, Twos, Threes, Fours, Fives, Sixes:
		face := c.face()
		return counts[face] * face
	case ThreeOfAKind:
		if maxCount(counts) >= 3 {
			return d.Sum()
		}
		return 0
	case FourOfAKind:
		if maxCount(counts) >= 4 {
			return d.Sum()
		}
		return 0
	case FullHouse:
		if isFullHouse(counts) {
			return fullHouseScore
		}
		return 0
	case SmallStraight:
		if isSmallStraight(counts) {
			return smallStraightScore
		}
		return 0
	case LargeStraight:
		if isLargeStraight(d) {
			return largeStraightScore
		}
		return 0
	case Yahtzee:
		if maxCount(counts) == DiceCount {
			return yahtzeeScore
		}
		return 0
	case Chance:
		return d.Sum()
	default:
		// Unrecognised boxes score nothing rather than failing.
		return 0
	}
}

// faceCounts indexes by face; index 0 is unused.
func faceCounts(d Dice) [DieFaces + 1]int {
	var counts [DieFaces + 1]int
	for _, v := range d {
		if v >= 1 && v <= DieFaces {
			counts[v]++
		}
	}
	return counts
}

func maxCount(counts [DieFaces + 1]int) int {
	best := 0
	for _, n := range counts[1:] {
		if n > best {
			best = n
		}
	}
	return best
}

func isFullHouse(counts [DieFaces + 1]int) bool {
	three, two := false, false
	for _, n := range counts[1:] {
		switch n {
		case 3:
			three = true
		case 2:
			two = true
		}
	}
	return three && two
}

// isSmallStraight requires the distinct faces to form one unbroken run of at
// least four, so a stray outlier such as 1-2-3-4-6 does not count.
func isSmallStraight(counts [DieFaces + 1]int) bool {
	lo, hi, distinct := 0, 0, 0
	for face := 1; face <= DieFaces; face++ {
		if counts[face] == 0 {
			continue
		}
		if lo == 0 {
			lo = face
		}
		hi = face
		distinct++
	}
	return distinct >= 4 && hi-lo+1 == distinct
}

func isLargeStraight(d Dice) bool {
	sorted := append([]int(nil), d[:]...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return false
		}
	}
	return sorted[0] == 1 || sorted[0] == 2
}
