package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// checkPostOnly evicts expired orders in the way of a post-only order, then
// either rejects it or moves it one tick behind the first live crossing
// order.
func (e *Engine) checkPostOnly(p *OrderPacket, price state.Tick, res *Result) (state.Tick, error) {
	id, live := e.evictExpiredCrossing(p.Side, price, &res.Evictions)
	if !live {
		return price, nil
	}
	if p.RejectPostOnly {
		return 0, fmt.Errorf("%w: resting order %v", ErrPostOnlyCross, id)
	}
	amended, ok := id.Price.Outward(p.Side, 1)
	if !ok {
		return 0, fmt.Errorf("%w: no tick behind %d", ErrPostOnlyCross, id.Price)
	}
	return amended, nil
}

// evictExpiredCrossing walks the side opposite a maker at price, evicting
// expired orders it would cross. It stops at and returns the first live
// crossing order, if any.
func (e *Engine) evictExpiredCrossing(side state.Side, price state.Tick, evictions *[]Eviction) (state.OrderID, bool) {
	if !e.market.Crosses(side, price) {
		return state.OrderID{}, false
	}
	c := e.book.Cursor(side.Opposite())
	defer c.Commit()
	for {
		id, ok := c.Next()
		if !ok || !crosses(side, price, id.Price) {
			return state.OrderID{}, false
		}
		o := state.ReadRestingOrder(e.store, id)
		if !e.clock.IsExpired(o.Expiry) {
			return id, true
		}
		*evictions = append(*evictions, e.evict(c, id, o, EvictExpired))
	}
}

// postRemainder rests the unfilled part of an order at the first tick, from
// price outward, with a free slot.
func (e *Engine) postRemainder(trader common.Address, p *OrderPacket, price state.Tick, size q.BaseLots) (state.OrderID, error) {
	ins := e.book.Inserter(p.Side)
	for off := uint32(0); off <= p.MaxTickOffset; off++ {
		t, ok := price.Outward(p.Side, off)
		if !ok {
			break
		}
		r, free := ins.FreeSlot(t)
		if !free {
			continue
		}
		id := state.OrderID{Price: t, Index: r}
		ins.Activate(id)
		ins.Commit()
		state.WriteRestingOrder(e.store, id, state.RestingOrder{
			Trader:      trader,
			NumBaseLots: size,
			Expiry:      p.Expiry,
		})
		return id, nil
	}
	ins.Commit()
	return state.OrderID{}, fmt.Errorf("%w: tick %d and %d ticks behind it are full", ErrNoFreeSlot, price, p.MaxTickOffset)
}
