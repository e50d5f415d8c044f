package orderbook

import "github.com/goblin-trade/goblin-core-v1-sub000/domain/state"

type cursorState int

const (
	cursorUninit cursorState = iota
	cursorLoaded
	cursorExhausted
)

// groupVisit is a group the cursor has moved past or is holding.
type groupVisit struct {
	outer    state.OuterIndex
	group    state.BitmapGroup
	original state.BitmapGroup
	start    int  // first bit index holding this side's orders
	loaded   bool // false for groups skipped by Find without a read
	dropped  bool
}

func (v *groupVisit) changed() bool { return v.group != v.original }

/*
Cursor reads and removes one side's resting orders, moving from the best
price outward. Ids passed to Find must not move back toward the centre.

Nothing is written until Commit. Commit recomputes the best price if the
best order was removed, updates the side's outer index count and writes the
groups and list slots that need it.
*/
type Cursor struct {
	store  state.Store
	market *state.MarketState
	side   state.Side
	list   *listCursor

	best  state.Tick
	empty bool

	st      cursorState
	cur     *groupVisit
	pos     int
	visited []*groupVisit

	bestRemoved bool
	removed     int
	committed   bool
}

func NewCursor(s state.Store, m *state.MarketState, side state.Side) *Cursor {
	return &Cursor{
		store:  s,
		market: m,
		side:   side,
		list:   newListCursor(s, side, m.OuterCount(side)),
		best:   m.BestPrice(side),
		empty:  m.IsEmpty(side),
	}
}

func (c *Cursor) Side() state.Side { return c.side }

// Removed is the number of orders removed so far.
func (c *Cursor) Removed() int { return c.removed }

// startBit hides the part of the best group that lies nearer the centre
// than the best price: the opposite side's orders and stale bits live there.
func (c *Cursor) startBit(o state.OuterIndex) int {
	if !c.empty && o == c.best.Outer() {
		return state.GroupPosition{Inner: c.best.Inner()}.BitIndex(c.side)
	}
	return 0
}

func (c *Cursor) load(o state.OuterIndex) {
	g := state.LoadBitmapGroup(c.store, o)
	start := c.startBit(o)
	c.cur = &groupVisit{outer: o, group: g, original: g, start: start, loaded: true}
	c.pos = start
	c.st = cursorLoaded
}

// leave finalises the held group: it stays listed while any of this side's
// bits remain.
func (c *Cursor) leave() {
	v := c.cur
	if v.group.HasActiveFrom(c.side, v.start) {
		c.list.Retain()
	} else {
		c.list.Drop()
		v.dropped = true
	}
	c.visited = append(c.visited, v)
	c.cur = nil
	c.st = cursorUninit
}

// Next returns the next resting order id, nearest the centre first.
func (c *Cursor) Next() (state.OrderID, bool) {
	for {
		switch c.st {
		case cursorExhausted:
			return state.OrderID{}, false

		case cursorUninit:
			o, ok := c.list.Current()
			if !ok {
				c.st = cursorExhausted
				continue
			}
			c.load(o)

		case cursorLoaded:
			p, ok := c.cur.group.NextActive(c.side, c.pos)
			if !ok {
				c.leave()
				continue
			}
			c.pos = p.BitIndex(c.side) + 1
			return state.OrderID{Price: state.TickFrom(c.cur.outer, p.Inner), Index: p.Resting}, true
		}
	}
}

// Find reports whether id rests on this side.
func (c *Cursor) Find(id state.OrderID) bool {
	if c.empty || id.Price.CloserToCentre(c.side, c.best) {
		return false
	}
	o := id.Price.Outer()

	if c.st == cursorLoaded {
		if c.cur.outer == o {
			return c.holds(id)
		}
		if o.CloserToCentre(c.side, c.cur.outer) {
			return false
		}
		c.leave()
	}
	if c.st == cursorExhausted {
		return false
	}

	for {
		cur, ok := c.list.Current()
		if !ok {
			c.st = cursorExhausted
			return false
		}
		if cur == o {
			c.load(o)
			return c.holds(id)
		}
		if !cur.CloserToCentre(c.side, o) {
			return false
		}
		c.list.Retain()
		c.visited = append(c.visited, &groupVisit{outer: cur})
	}
}

func (c *Cursor) holds(id state.OrderID) bool {
	p := id.Position()
	bit := p.BitIndex(c.side)
	if bit < c.cur.start || !c.cur.group.IsSet(p) {
		return false
	}
	if bit+1 > c.pos {
		c.pos = bit + 1
	}
	return true
}

// Remove clears an id returned by Next or confirmed by Find. It must lie in
// the group the cursor currently holds.
func (c *Cursor) Remove(id state.OrderID) {
	if c.st != cursorLoaded || c.cur.outer != id.Price.Outer() {
		panic("orderbook: remove outside the held group")
	}
	c.cur.group.Clear(id.Position())
	c.removed++
	if id.Price == c.best {
		c.bestRemoved = true
	}
}

// Commit flushes the pass. The cursor cannot be used afterwards.
func (c *Cursor) Commit() {
	if c.committed {
		return
	}
	c.committed = true
	if c.st == cursorLoaded {
		c.leave()
	}
	c.st = cursorExhausted

	best := c.best
	if c.bestRemoved {
		best = c.recomputeBest()
	}
	size := c.list.Commit()
	c.market.SetOuterCount(c.side, uint16(size))
	if size == 0 {
		best = state.EmptySentinel(c.side)
	}
	c.market.SetBestPrice(c.side, best)

	lo, hi, zone := c.market.GarbageRange()
	for _, v := range c.visited {
		if !v.loaded || v.dropped || !v.changed() {
			continue
		}
		if zone && changesWithin(v, lo, hi) {
			continue
		}
		v.group.Write(c.store, v.outer)
	}
}

// recomputeBest scans the retained groups in order, then the unvisited part
// of the list.
func (c *Cursor) recomputeBest() state.Tick {
	for _, v := range c.visited {
		if v.dropped {
			continue
		}
		if !v.loaded {
			v.group = state.LoadBitmapGroup(c.store, v.outer)
			v.original = v.group
			v.start = c.startBit(v.outer)
		}
		if p, ok := v.group.NextActive(c.side, v.start); ok {
			return state.TickFrom(v.outer, p.Inner)
		}
	}
	for pos := c.list.unread - 1; pos >= 0; pos-- {
		o := c.list.at(pos)
		g := state.LoadBitmapGroup(c.store, o)
		if p, ok := g.NextActive(c.side, c.startBit(o)); ok {
			return state.TickFrom(o, p.Inner)
		}
	}
	return state.EmptySentinel(c.side)
}

// changesWithin reports whether every tick that changed in the group lies
// in [lo, hi]. Such a group needs no write: readers ignore that interval.
func changesWithin(v *groupVisit, lo, hi state.Tick) bool {
	for i := 0; i < state.TicksPerGroup; i++ {
		if v.group[i] == v.original[i] {
			continue
		}
		t := state.TickFrom(v.outer, state.InnerIndex(i))
		if t < lo || t > hi {
			return false
		}
	}
	return true
}
