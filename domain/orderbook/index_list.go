package orderbook

import "github.com/goblin-trade/goblin-core-v1-sub000/domain/state"

/*
listCursor edits one side's index list in a single pass from the centre
outward.

The persisted list is sorted with the outer index nearest the centre at the
end. Positions [0, unread) have not been visited yet. Visited entries that
survive are pushed onto cache, nearest first, together with any inserted
entries. Commit writes reverse(cache) back behind the unread prefix, touching
only slots whose contents changed. Positions at or past the new size keep
whatever they held before (ghosts) and are never read.
*/
type listCursor struct {
	store  state.Store
	side   state.Side
	unread int
	cache  []state.OuterIndex
	slots  map[uint16]*state.ListSlot
	dirty  map[uint16]bool
}

func newListCursor(s state.Store, side state.Side, size uint16) *listCursor {
	return &listCursor{
		store:  s,
		side:   side,
		unread: int(size),
		slots:  make(map[uint16]*state.ListSlot),
		dirty:  make(map[uint16]bool),
	}
}

func (l *listCursor) slot(i uint16) *state.ListSlot {
	if s, ok := l.slots[i]; ok {
		return s
	}
	s := state.LoadListSlot(l.store, l.side, i)
	l.slots[i] = &s
	return &s
}

func (l *listCursor) at(pos int) state.OuterIndex {
	i, off := state.ListPosition(pos)
	return l.slot(i).Get(off)
}

func (l *listCursor) put(pos int, o state.OuterIndex) {
	i, off := state.ListPosition(pos)
	s := l.slot(i)
	if s.Get(off) != o {
		s.Set(off, o)
		l.dirty[i] = true
	}
}

// Current is the nearest unvisited entry.
func (l *listCursor) Current() (state.OuterIndex, bool) {
	if l.unread == 0 {
		return 0, false
	}
	return l.at(l.unread - 1), true
}

// Retain keeps the current entry and moves past it.
func (l *listCursor) Retain() {
	o, ok := l.Current()
	if !ok {
		return
	}
	l.cache = append(l.cache, o)
	l.unread--
}

// Drop removes the current entry from the list.
func (l *listCursor) Drop() {
	if l.unread > 0 {
		l.unread--
	}
}

// Push inserts o between the visited entries and the current one. The caller
// has already sought past every entry nearer the centre than o.
func (l *listCursor) Push(o state.OuterIndex) {
	l.cache = append(l.cache, o)
}

// Seek retains entries nearer the centre than o and reports whether o is
// already in the list.
func (l *listCursor) Seek(o state.OuterIndex) bool {
	if n := len(l.cache); n > 0 && l.cache[n-1] == o {
		return true
	}
	for {
		cur, ok := l.Current()
		if !ok {
			return false
		}
		if !cur.CloserToCentre(l.side, o) {
			return cur == o
		}
		l.Retain()
	}
}

func (l *listCursor) Size() int {
	return l.unread + len(l.cache)
}

// Commit writes the edited list and rewinds the cursor to the centre.
func (l *listCursor) Commit() int {
	pos := l.unread
	for i := len(l.cache) - 1; i >= 0; i-- {
		l.put(pos, l.cache[i])
		pos++
	}
	for i := range l.dirty {
		l.slots[i].Write(l.store, l.side, i)
	}
	l.unread = pos
	l.cache = l.cache[:0]
	l.dirty = make(map[uint16]bool)
	return pos
}

// ReadIndexList returns the logical prefix of a side's list, nearest the
// centre first.
func ReadIndexList(s state.Store, m *state.MarketState, side state.Side) []state.OuterIndex {
	l := newListCursor(s, side, m.OuterCount(side))
	out := make([]state.OuterIndex, 0, l.unread)
	for pos := l.unread - 1; pos >= 0; pos-- {
		out = append(out, l.at(pos))
	}
	return out
}
