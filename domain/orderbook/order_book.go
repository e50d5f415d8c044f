// Package orderbook is the price-level index: per-tick occupancy bitmaps
// grouped 32 ticks at a time, plus one sorted list of active groups per side.
//
// Everything here is single-writer and reads and writes through a
// state.Store. Callers hand in a buffered store and commit it once.
package orderbook

import "github.com/goblin-trade/goblin-core-v1-sub000/domain/state"

// Book binds the index to a store and a market state for one request.
type Book struct {
	Store  state.Store
	Market *state.MarketState
}

func New(s state.Store, m *state.MarketState) *Book {
	return &Book{Store: s, Market: m}
}

func (b *Book) Cursor(side state.Side) *Cursor {
	return NewCursor(b.Store, b.Market, side)
}

func (b *Book) Inserter(side state.Side) *Inserter {
	return NewInserter(b.Store, b.Market, side)
}

// ---- traversal helpers ----

// Walk visits a side's resting orders from the best price outward until fn
// returns false. It never writes.
func Walk(s state.Store, m *state.MarketState, side state.Side, fn func(state.OrderID, state.RestingOrder) bool) {
	c := NewCursor(s, m, side)
	for {
		id, ok := c.Next()
		if !ok {
			return
		}
		if !fn(id, state.ReadRestingOrder(s, id)) {
			return
		}
	}
}

func (b *Book) Walk(side state.Side, fn func(state.OrderID, state.RestingOrder) bool) {
	Walk(b.Store, b.Market, side, fn)
}

// Level is the aggregated size at one tick.
type Level struct {
	Price      state.Tick
	BaseLots   uint64
	OrderCount int
}

// Depth aggregates up to n price levels of a side. n <= 0 means all.
func Depth(s state.Store, m *state.MarketState, side state.Side, n int) []Level {
	var out []Level
	Walk(s, m, side, func(id state.OrderID, o state.RestingOrder) bool {
		if k := len(out); k > 0 && out[k-1].Price == id.Price {
			out[k-1].BaseLots += uint64(o.NumBaseLots)
			out[k-1].OrderCount++
			return true
		}
		if n > 0 && len(out) == n {
			return false
		}
		out = append(out, Level{Price: id.Price, BaseLots: uint64(o.NumBaseLots), OrderCount: 1})
		return true
	})
	return out
}

// SideOf returns the side a resting order at price must be on, given the
// current best prices. ok is false for prices inside the spread.
func SideOf(m *state.MarketState, price state.Tick) (state.Side, bool) {
	switch {
	case !m.IsEmpty(state.Bid) && price <= m.BestBidPrice:
		return state.Bid, true
	case !m.IsEmpty(state.Ask) && price >= m.BestAskPrice:
		return state.Ask, true
	}
	return 0, false
}

// Lookup finds a live resting order by id. Stale bits in the spread and
// empty slots report false.
func Lookup(s state.Store, m *state.MarketState, id state.OrderID) (state.Side, state.RestingOrder, bool) {
	side, ok := SideOf(m, id.Price)
	if !ok || !NewCursor(s, m, side).Find(id) {
		return 0, state.RestingOrder{}, false
	}
	return side, state.ReadRestingOrder(s, id), true
}
