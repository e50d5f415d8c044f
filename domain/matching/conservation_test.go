package matching

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/stretchr/testify/require"
)

// ledger tracks what crossed the market boundary.
type ledger struct {
	base, quote int64
}

func (l *ledger) apply(tr Transfers) {
	l.base += int64(tr.BaseLotsIn) - int64(tr.BaseLotsOut)
	l.quote += int64(tr.QuoteLotsIn) - int64(tr.QuoteLotsOut)
}

func TestRandomFlowConservesFunds(t *testing.T) {
	params := MarketParams{
		BaseLotsPerBaseUnit:            10,
		TickSizeInQuoteLotsPerBaseUnit: 20,
		TakerFeeBps:                    7,
		BaseLotSize:                    1,
		QuoteLotSize:                   1,
	}
	traders := []common.Address{alice, bob, carol, dave}
	types := []OrderType{Limit, Limit, PostOnly, ImmediateOrCancel}
	stb := []SelfTradeBehavior{Abort, CancelProvide, DecrementTake}

	for seed := int64(1); seed <= 10; seed++ {
		h := newHarness(t, params)
		rng := rand.New(rand.NewSource(seed))
		var flow ledger

		for step := 0; step < 200; step++ {
			who := traders[rng.Intn(len(traders))]
			if rng.Intn(5) == 0 {
				if res, ok := reduceRandom(h, rng, who); ok {
					require.NotNil(t, res)
				}
			} else {
				side := state.Side(rng.Intn(2))
				p := OrderPacket{
					Side:        side,
					Type:        types[rng.Intn(len(types))],
					Price:       uint64(40 + rng.Intn(60)),
					NumBaseLots: q.BaseLots(1 + rng.Intn(8)),
					SelfTrade:   stb[rng.Intn(len(stb))],
				}
				if res, err := h.place(who, p); err == nil {
					flow.apply(res.Transfers)
				}
			}
			checkInvariants(t, h, traders, flow)
		}
	}
}

func reduceRandom(h *harness, rng *rand.Rand, who common.Address) (*ReduceResult, bool) {
	side := state.Side(rng.Intn(2))
	m := h.market()
	var ids []state.OrderID
	orderbook.Walk(h.store, &m, side, func(id state.OrderID, o state.RestingOrder) bool {
		if o.Trader == who {
			ids = append(ids, id)
		}
		return true
	})
	if len(ids) == 0 {
		return nil, false
	}
	id := ids[rng.Intn(len(ids))]
	res, err := h.reduce(who, ReduceRequest{OrderID: id, Lots: q.BaseLots(rng.Intn(4)), RevertOnFailure: true})
	require.NoError(h.t, err)
	return res, true
}

func checkInvariants(t *testing.T, h *harness, traders []common.Address, flow ledger) {
	t.Helper()
	m := h.market()
	if !m.IsEmpty(state.Bid) && !m.IsEmpty(state.Ask) {
		require.True(t, m.BestBidPrice < m.BestAskPrice, "book crossed at %d/%d", m.BestBidPrice, m.BestAskPrice)
	}

	lockedBase := map[common.Address]q.BaseLots{}
	lockedQuote := map[common.Address]q.QuoteLots{}
	orderbook.Walk(h.store, &m, state.Ask, func(id state.OrderID, o state.RestingOrder) bool {
		lockedBase[o.Trader] += o.NumBaseLots
		return true
	})
	orderbook.Walk(h.store, &m, state.Bid, func(id state.OrderID, o state.RestingOrder) bool {
		quote, ok := h.params.QuoteLots(o.NumBaseLots, id.Price)
		require.True(t, ok)
		lockedQuote[o.Trader] += quote
		return true
	})

	var base, quote int64
	for _, a := range traders {
		tr := h.trader(a)
		require.Equal(t, lockedBase[a], tr.BaseLotsLocked, "base locked by %s", a)
		require.Equal(t, lockedQuote[a], tr.QuoteLotsLocked, "quote locked by %s", a)
		base += int64(tr.BaseLotsFree + tr.BaseLotsLocked)
		quote += int64(tr.QuoteLotsFree + tr.QuoteLotsLocked)
	}
	require.Equal(t, flow.base, base, "base lots")
	require.Equal(t, flow.quote, quote+int64(m.UnclaimedQuoteLotFees), "quote lots")
}
