package domain

import "math/rand"

// Color is an RGB triple.
type Color [3]int

// Palette is the fixed, ordered set of player colours.
var Palette = []Color{
	{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 0},
	{255, 0, 255}, {0, 255, 255}, {255, 165, 0}, {128, 0, 128},
	{0, 128, 128}, {128, 128, 0}, {255, 105, 180}, {0, 100, 255},
	{0, 200, 50}, {255, 20, 147}, {139, 69, 19}, {100, 149, 237},
}

// ColorPool hands out palette colours to active players. Once the palette is
// exhausted it synthesises random colours, which may collide.
type ColorPool struct {
	inUse map[Color]bool
	order []Color // allocation order, kept for stable snapshots
}

// NewColorPool returns a pool with every palette colour free.
func NewColorPool() *ColorPool {
	return &ColorPool{inUse: make(map[Color]bool)}
}

// RestoreColorPool rebuilds a pool from a snapshot's in-use list.
func RestoreColorPool(used []Color) *ColorPool {
	p := NewColorPool()
	for _, c := range used {
		p.mark(c)
	}
	return p
}

// Acquire reserves the first free palette colour, or a random one when the
// palette is exhausted.
func (p *ColorPool) Acquire(rng *rand.Rand) Color {
	for _, c := range Palette {
		if !p.inUse[c] {
			p.mark(c)
			return c
		}
	}
	c := Color{50 + rng.Intn(206), 50 + rng.Intn(206), 50 + rng.Intn(206)}
	p.mark(c)
	return c
}

// Claim reserves c if nobody holds it.
func (p *ColorPool) Claim(c Color) bool {
	if p.inUse[c] {
		return false
	}
	p.mark(c)
	return true
}

// Release returns c to the pool. Releasing a free colour is a no-op.
func (p *ColorPool) Release(c Color) {
	if !p.inUse[c] {
		return
	}
	delete(p.inUse, c)
	for i, held := range p.order {
		if held == c {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// InUse reports whether c is currently held.
func (p *ColorPool) InUse(c Color) bool {
	return p.inUse[c]
}

// Used lists held colours in allocation order.
func (p *ColorPool) Used() []Color {
	return append([]Color(nil), p.order...)
}

func (p *ColorPool) mark(c Color) {
	if p.inUse[c] {
		return
	}
	p.inUse[c] = true
	p.order = append(p.order, c)
}
