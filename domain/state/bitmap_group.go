package state

import "math/bits"

// BitmapGroup is the occupancy map of 32 consecutive ticks. Byte i holds the
// 8 resting order slots of tick outer*32+i.
type BitmapGroup [32]byte

func LoadBitmapGroup(s Store, outer OuterIndex) BitmapGroup {
	return BitmapGroup(s.Get(BitmapKey(outer)))
}

func (g *BitmapGroup) Write(s Store, outer OuterIndex) {
	s.Set(BitmapKey(outer), Slot(*g))
}

func (g *BitmapGroup) IsSet(p GroupPosition) bool {
	return g[p.Inner]&(1<<p.Resting) != 0
}

func (g *BitmapGroup) Set(p GroupPosition) {
	g[p.Inner] |= 1 << p.Resting
}

func (g *BitmapGroup) Clear(p GroupPosition) {
	g[p.Inner] &^= 1 << p.Resting
}

func (g *BitmapGroup) IsEmpty() bool {
	return *g == BitmapGroup{}
}

// TickActive reports whether any slot of the tick is occupied.
func (g *BitmapGroup) TickActive(inner InnerIndex) bool {
	return g[inner] != 0
}

// BestActiveInnerIndex scans the group in the side's direction (away from the
// centre) and returns the first occupied tick. A non-nil start begins the scan
// at that inner index, inclusive.
func (g *BitmapGroup) BestActiveInnerIndex(side Side, start *InnerIndex) (InnerIndex, bool) {
	var i InnerIndex
	switch {
	case start != nil:
		i = *start
	case side == Ask:
		i = 0
	default:
		i = TicksPerGroup - 1
	}
	for {
		if g[i] != 0 {
			return i, true
		}
		next, ok := i.Next(side)
		if !ok {
			return 0, false
		}
		i = next
	}
}

// NextActive returns the first occupied position whose bit index is >= from.
func (g *BitmapGroup) NextActive(side Side, from int) (GroupPosition, bool) {
	for bit := from; bit < BitsPerGroup; bit = (bit/SlotsPerTick + 1) * SlotsPerTick {
		p := GroupPositionFromBitIndex(side, bit)
		rest := g[p.Inner] >> p.Resting
		if rest != 0 {
			p.Resting += RestingOrderIndex(bits.TrailingZeros8(rest))
			return p, true
		}
	}
	return GroupPosition{}, false
}

// HasActiveFrom reports whether any position with bit index >= from is set.
func (g *BitmapGroup) HasActiveFrom(side Side, from int) bool {
	_, ok := g.NextActive(side, from)
	return ok
}

// FreeSlot returns the lowest unoccupied resting order index at a tick.
func (g *BitmapGroup) FreeSlot(inner InnerIndex) (RestingOrderIndex, bool) {
	b := g[inner]
	if b == 0xff {
		return 0, false
	}
	return RestingOrderIndex(bits.TrailingZeros8(^b)), true
}

// ClearTicks zeroes every tick of this group that falls in [lo, hi] and
// reports whether anything changed.
func (g *BitmapGroup) ClearTicks(outer OuterIndex, lo, hi Tick) bool {
	if lo > hi {
		return false
	}
	first, last := outer.FirstTick(), outer.LastTick()
	if hi < first || lo > last {
		return false
	}
	if lo < first {
		lo = first
	}
	if hi > last {
		hi = last
	}
	changed := false
	for t := lo; t <= hi; t++ {
		if g[t.Inner()] != 0 {
			g[t.Inner()] = 0
			changed = true
		}
	}
	return changed
}
