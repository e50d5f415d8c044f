// Package matching places, matches and cancels orders against the
// price-level index.
package matching

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

/*
Engine executes the operations of one request against a store.

Market and trader state are cached in memory and written back once, when an
operation succeeds. The store should be a state.Buffer: an operation that
returns an error may already have written book pages, and the caller must
discard the buffer and the engine together.
*/
type Engine struct {
	params MarketParams
	store  state.Store
	clock  *state.ExpiryCache

	market  state.MarketState
	book    *orderbook.Book
	traders map[common.Address]*state.TraderState
	order   []common.Address
}

func New(p MarketParams, s state.Store, c state.Chain) *Engine {
	e := &Engine{
		params:  p,
		store:   s,
		clock:   state.NewExpiryCache(c),
		market:  state.LoadMarketState(s),
		traders: make(map[common.Address]*state.TraderState),
	}
	e.book = orderbook.New(s, &e.market)
	return e
}

func (e *Engine) Params() MarketParams      { return e.params }
func (e *Engine) Market() state.MarketState { return e.market }

func (e *Engine) trader(addr common.Address) *state.TraderState {
	if t, ok := e.traders[addr]; ok {
		return t
	}
	t := state.LoadTraderState(e.store, addr)
	e.traders[addr] = &t
	e.order = append(e.order, addr)
	return &t
}

// Trader returns the trader's balances as this request currently sees them.
func (e *Engine) Trader(addr common.Address) state.TraderState {
	return *e.trader(addr)
}

// flush writes the cached market and trader state.
func (e *Engine) flush() {
	e.market.Write(e.store)
	for _, addr := range e.order {
		e.traders[addr].Write(e.store, addr)
	}
}

// release returns the funds backing size lots of a resting order to its
// owner's free balance.
func (e *Engine) release(side state.Side, id state.OrderID, owner common.Address, size q.BaseLots) {
	t := e.trader(owner)
	if side == state.Ask {
		t.UnlockBase(size)
		return
	}
	quote, _ := e.params.QuoteLots(size, id.Price)
	t.UnlockQuote(quote)
}

// evict removes a resting order the cursor holds and releases its funds.
func (e *Engine) evict(c *orderbook.Cursor, id state.OrderID, o state.RestingOrder, reason EvictReason) Eviction {
	e.release(c.Side(), id, o.Trader, o.NumBaseLots)
	c.Remove(id)
	return Eviction{
		Trader:   o.Trader,
		OrderID:  id,
		Side:     c.Side(),
		BaseLots: o.NumBaseLots,
		Reason:   reason,
	}
}

// crosses reports whether a resting order at resting on the opposite side
// trades with a taker on side at limit.
func crosses(side state.Side, limit, resting state.Tick) bool {
	if side == state.Bid {
		return resting <= limit
	}
	return resting >= limit
}
