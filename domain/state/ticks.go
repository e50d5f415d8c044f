package state

import "fmt"

const (
	TickBits      = 21
	TicksPerGroup = 32
	SlotsPerTick  = 8
	BitsPerGroup  = TicksPerGroup * SlotsPerTick
)

const MaxTick Tick = 1<<TickBits - 1

// Tick is a discrete price level in [0, MaxTick].
type Tick uint32

// NewTick panics when v does not fit in 21 bits. Callers validate user input
// before it reaches this point.
func NewTick(v uint64) Tick {
	if v > uint64(MaxTick) {
		panic(fmt.Sprintf("state: tick %d out of range", v))
	}
	return Tick(v)
}

func TickFrom(outer OuterIndex, inner InnerIndex) Tick {
	return Tick(uint32(outer)*TicksPerGroup + uint32(inner))
}

func (t Tick) Outer() OuterIndex { return OuterIndex(t / TicksPerGroup) }
func (t Tick) Inner() InnerIndex { return InnerIndex(t % TicksPerGroup) }

// CloserToCentre reports whether t is nearer the book centre than other for
// orders resting on side. Bids improve upward, asks downward.
func (t Tick) CloserToCentre(side Side, other Tick) bool {
	if side == Bid {
		return t > other
	}
	return t < other
}

// Outward moves n ticks away from the centre. ok is false when the move
// leaves [1, MaxTick].
func (t Tick) Outward(side Side, n uint32) (Tick, bool) {
	if side == Bid {
		if uint32(t) <= n {
			return 0, false
		}
		return t - Tick(n), true
	}
	if uint64(t)+uint64(n) > uint64(MaxTick) {
		return 0, false
	}
	return t + Tick(n), true
}

// OuterIndex identifies one bitmap group of 32 ticks.
type OuterIndex uint16

func (o OuterIndex) CloserToCentre(side Side, other OuterIndex) bool {
	if side == Bid {
		return o > other
	}
	return o < other
}

func (o OuterIndex) FirstTick() Tick { return TickFrom(o, 0) }
func (o OuterIndex) LastTick() Tick  { return TickFrom(o, TicksPerGroup-1) }

// InnerIndex is the byte offset of a tick inside its bitmap group.
type InnerIndex uint8

func NewInnerIndex(v int) InnerIndex {
	if v < 0 || v >= TicksPerGroup {
		panic(fmt.Sprintf("state: inner index %d out of range", v))
	}
	return InnerIndex(v)
}

// Next steps one tick away from the centre inside the group.
func (i InnerIndex) Next(side Side) (InnerIndex, bool) {
	if side == Ask {
		if i == TicksPerGroup-1 {
			return 0, false
		}
		return i + 1, true
	}
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// Previous steps one tick toward the centre inside the group.
func (i InnerIndex) Previous(side Side) (InnerIndex, bool) {
	return i.Next(side.Opposite())
}

// RestingOrderIndex selects one of the 8 order slots at a tick.
type RestingOrderIndex uint8

func NewRestingOrderIndex(v int) RestingOrderIndex {
	if v < 0 || v >= SlotsPerTick {
		panic(fmt.Sprintf("state: resting order index %d out of range", v))
	}
	return RestingOrderIndex(v)
}

// GroupPosition addresses one bit of a bitmap group.
type GroupPosition struct {
	Inner   InnerIndex
	Resting RestingOrderIndex
}

// BitIndex linearises the position so that the index grows moving away from
// the centre on both sides. Slot order inside a tick is never mirrored.
func (p GroupPosition) BitIndex(side Side) int {
	inner := int(p.Inner)
	if side == Bid {
		inner = TicksPerGroup - 1 - inner
	}
	return inner*SlotsPerTick + int(p.Resting)
}

func GroupPositionFromBitIndex(side Side, bit int) GroupPosition {
	if bit < 0 || bit >= BitsPerGroup {
		panic(fmt.Sprintf("state: bit index %d out of range", bit))
	}
	inner := bit / SlotsPerTick
	if side == Bid {
		inner = TicksPerGroup - 1 - inner
	}
	return GroupPosition{
		Inner:   InnerIndex(inner),
		Resting: RestingOrderIndex(bit % SlotsPerTick),
	}
}

// OrderID is the storage address of a resting order.
type OrderID struct {
	Price Tick
	Index RestingOrderIndex
}

func (id OrderID) Position() GroupPosition {
	return GroupPosition{Inner: id.Price.Inner(), Resting: id.Index}
}

// CloserToCentre orders ids on one side: by tick first, then by slot.
func (id OrderID) CloserToCentre(side Side, other OrderID) bool {
	if id.Price != other.Price {
		return id.Price.CloserToCentre(side, other.Price)
	}
	return id.Index < other.Index
}

func (id OrderID) String() string {
	return fmt.Sprintf("%d/%d", id.Price, id.Index)
}
