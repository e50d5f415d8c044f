package orderbook

import "github.com/goblin-trade/goblin-core-v1-sub000/domain/state"

/*
Inserter activates resting order ids on one side. Successive calls must move
away from the centre; that is what lets a whole batch share one pass over
the index list.

The market's best price and outer index count are updated on every
Activate. Groups and list slots are written by Commit, or when the inserter
moves on to another group.
*/
type Inserter struct {
	store  state.Store
	market *state.MarketState
	side   state.Side
	list   *listCursor

	held   bool
	outer  state.OuterIndex
	group  state.BitmapGroup
	listed bool
	dirty  bool

	oldBestCleaned bool
	activated      int
}

func NewInserter(s state.Store, m *state.MarketState, side state.Side) *Inserter {
	return &Inserter{
		store:  s,
		market: m,
		side:   side,
		list:   newListCursor(s, side, m.OuterCount(side)),
	}
}

func (i *Inserter) Activated() int { return i.activated }

func (i *Inserter) flush() {
	if i.held && i.dirty {
		i.group.Write(i.store, i.outer)
	}
	i.dirty = false
}

// prepare makes o the held group. A group that is neither listed for this
// side nor holding the opposite side's best price has no live bits and is
// started from zero without a read.
func (i *Inserter) prepare(o state.OuterIndex) {
	if i.held && i.outer == o {
		return
	}
	i.flush()

	listed := i.list.Seek(o)
	opp := i.side.Opposite()
	shared := !i.market.IsEmpty(opp) && i.market.BestPrice(opp).Outer() == o

	var g state.BitmapGroup
	if listed || shared {
		g = state.LoadBitmapGroup(i.store, o)
		if lo, hi, ok := i.market.GarbageRange(); ok {
			g.ClearTicks(o, lo, hi)
		}
	}
	i.held, i.outer, i.group, i.listed = true, o, g, listed
}

// FreeSlot returns the lowest free resting order index at t.
func (i *Inserter) FreeSlot(t state.Tick) (state.RestingOrderIndex, bool) {
	i.prepare(t.Outer())
	return i.group.FreeSlot(t.Inner())
}

// Activate sets the bit for id, listing its group if needed. The slot must
// be free.
func (i *Inserter) Activate(id state.OrderID) {
	o := id.Price.Outer()
	empty := i.market.IsEmpty(i.side)
	best := i.market.BestPrice(i.side)
	improves := empty || id.Price.CloserToCentre(i.side, best)

	if !empty && improves && best.Outer() != o && !i.oldBestCleaned {
		i.cleanOldBest(best.Outer())
	}

	i.prepare(o)
	if !i.listed {
		i.list.Push(o)
		i.listed = true
	}
	i.group.Set(id.Position())
	i.dirty = true
	i.activated++

	if improves {
		i.market.SetBestPrice(i.side, id.Price)
	}
	i.market.SetOuterCount(i.side, uint16(i.list.Size()))
}

// cleanOldBest clears stale bits from the group that held the best price
// before this batch moved it. Once the best moves past them they would
// otherwise be read as live.
func (i *Inserter) cleanOldBest(o state.OuterIndex) {
	i.oldBestCleaned = true
	lo, hi, ok := i.market.GarbageRange()
	if !ok {
		return
	}
	if i.held && i.outer == o {
		if i.group.ClearTicks(o, lo, hi) {
			i.dirty = true
		}
		return
	}
	g := state.LoadBitmapGroup(i.store, o)
	if g.ClearTicks(o, lo, hi) {
		g.Write(i.store, o)
	}
}

func (i *Inserter) Commit() {
	i.flush()
	i.held = false
	i.list.Commit()
	i.market.SetOuterCount(i.side, uint16(i.list.Size()))
}
