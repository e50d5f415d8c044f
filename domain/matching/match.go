package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

type matchState struct {
	base     q.BaseLots
	adjusted q.AdjustedQuoteLots
	// quoteCapped is set for orders sized by a quote budget. Otherwise
	// adjusted is never spent or checked.
	quoteCapped bool

	matchedBase  q.BaseLots
	matchedQuote q.QuoteLots
}

func (m *matchState) consume(base q.BaseLots, perLot q.AdjustedQuoteLots) {
	m.base = q.BaseLots(q.SaturatingSub(uint64(m.base), uint64(base)))
	if m.quoteCapped {
		cost := q.SaturatingMul(uint64(base), uint64(perLot))
		m.adjusted = q.AdjustedQuoteLots(q.SaturatingSub(uint64(m.adjusted), cost))
	}
}

// capacity is how many base lots the taker can still take at perLot.
func (m *matchState) capacity(perLot q.AdjustedQuoteLots) q.BaseLots {
	if !m.quoteCapped {
		return m.base
	}
	afford := q.BaseLots(uint64(m.adjusted) / uint64(perLot))
	return min(m.base, afford)
}

// ---- matching ----

// match walks the opposite side from its best price while the order still
// crosses, has budget left and has not touched MatchLimit resting orders.
func (e *Engine) match(taker common.Address, p *OrderPacket, price state.Tick, m *matchState, res *Result) error {
	opp := p.Side.Opposite()
	c := e.book.Cursor(opp)
	limit := p.MatchLimit
	limited := limit != 0

	for m.base > 0 && m.adjusted > 0 {
		if limited && limit == 0 {
			break
		}
		id, ok := c.Next()
		if !ok || !crosses(p.Side, price, id.Price) {
			break
		}
		o := state.ReadRestingOrder(e.store, id)

		if e.clock.IsExpired(o.Expiry) {
			res.Evictions = append(res.Evictions, e.evict(c, id, o, EvictExpired))
			limit--
			continue
		}

		perLot := e.params.adjustedPerBaseLot(id.Price)
		capacity := m.capacity(perLot)
		if capacity == 0 {
			break
		}

		if o.Trader == taker {
			switch p.SelfTrade {
			case Abort:
				return fmt.Errorf("%w: resting order %v", ErrSelfTrade, id)
			case CancelProvide:
				ev := e.evict(c, id, o, EvictSelfTrade)
				res.Evictions = append(res.Evictions, ev)
			case DecrementTake:
				overlap := min(o.NumBaseLots, capacity)
				e.release(opp, id, o.Trader, overlap)
				m.consume(overlap, perLot)
				o.NumBaseLots -= overlap
				e.storeOrRemove(c, id, o)
				res.Evictions = append(res.Evictions, Eviction{
					Trader:    o.Trader,
					OrderID:   id,
					Side:      opp,
					BaseLots:  overlap,
					Remaining: o.NumBaseLots,
					Reason:    EvictSelfTrade,
				})
			}
			limit--
			continue
		}

		fill := min(capacity, o.NumBaseLots)
		quote, _ := e.params.QuoteLots(fill, id.Price)
		maker := e.trader(o.Trader)
		if opp == state.Ask {
			maker.ProcessLimitSell(fill, quote)
		} else {
			maker.ProcessLimitBuy(quote, fill)
		}
		o.NumBaseLots -= fill
		e.storeOrRemove(c, id, o)

		m.consume(fill, perLot)
		m.matchedBase += fill
		m.matchedQuote = q.QuoteLots(q.SaturatingAdd(uint64(m.matchedQuote), uint64(quote)))
		res.Fills = append(res.Fills, Fill{
			Maker:          o.Trader,
			OrderID:        id,
			BaseLots:       fill,
			QuoteLots:      quote,
			MakerRemaining: o.NumBaseLots,
		})
		limit--
	}

	c.Commit()
	return nil
}

// storeOrRemove writes a shrunk resting order back, or removes it once
// empty. Empty orders only lose their bit; the record is left as is.
func (e *Engine) storeOrRemove(c *orderbook.Cursor, id state.OrderID, o state.RestingOrder) {
	if o.NumBaseLots == 0 {
		c.Remove(id)
		return
	}
	state.WriteRestingOrder(e.store, id, o)
}
