package matching

import (
	"testing"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleCross(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))

	res := h.mustPlace(alice, limit(state.Bid, 100, 3))

	assert.Equal(t, q.BaseLots(3), res.MatchedBaseLots)
	assert.Equal(t, q.QuoteLots(300), res.MatchedQuoteLots)
	assert.Nil(t, res.Placed)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, Fill{Maker: bob, OrderID: oid(100, 0), BaseLots: 3, QuoteLots: 300, MakerRemaining: 2}, res.Fills[0])
	assert.Equal(t, Transfers{QuoteLotsIn: 300, BaseLotsOut: 3}, res.Transfers)

	assert.Equal(t, q.BaseLots(2), h.order(100, 0).NumBaseLots)
	assert.Equal(t, state.Tick(100), h.market().BestAskPrice)
	assert.Equal(t, state.TraderState{QuoteLotsFree: 300, BaseLotsLocked: 2}, h.trader(bob))
}

func TestFullConsumptionMovesBestPrice(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 3))
	h.mustPlace(bob, limit(state.Ask, 260, 1))

	h.mustPlace(alice, limit(state.Bid, 100, 3))
	m := h.market()
	assert.Equal(t, state.Tick(260), m.BestAskPrice)
	assert.Equal(t, uint16(1), m.AsksOuterIndices)
	assert.Equal(t, []state.OuterIndex{8}, orderbook.ReadIndexList(h.store, &m, state.Ask))

	h.mustPlace(alice, limit(state.Bid, 260, 1))
	m = h.market()
	assert.Equal(t, state.MaxTick, m.BestAskPrice)
	assert.True(t, m.IsEmpty(state.Ask))
}

func TestIOCBelowMinimumFailsWholeOrder(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 4))
	before := h.snapshot()

	p := ioc(state.Bid, 100, 10)
	p.MinBaseLotsToFill = 10
	_, err := h.place(alice, p)

	require.ErrorIs(t, err, ErrBelowMinimumFill)
	assert.Equal(t, before, h.store)
}

func TestIOCPartialFillWithoutMinimum(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 4))

	res := h.mustPlace(alice, ioc(state.Bid, 100, 10))
	assert.Equal(t, q.BaseLots(4), res.MatchedBaseLots)
	assert.Nil(t, res.Placed, "IOC never rests")
	assert.True(t, h.market().IsEmpty(state.Ask))
	assert.True(t, h.market().IsEmpty(state.Bid))
}

func TestExpiredMakerEvictedWithoutFill(t *testing.T) {
	h := newHarness(t, unitParams)
	stale := limit(state.Ask, 100, 2)
	stale.Expiry = state.Expiry{TrackBlock: true, LastValid: 10}
	h.mustPlace(bob, stale)
	h.mustPlace(carol, limit(state.Ask, 101, 5))
	h.chain.Block = 11

	p := limit(state.Bid, 101, 3)
	p.MatchLimit = 2
	res := h.mustPlace(alice, p)

	require.Len(t, res.Evictions, 1)
	assert.Equal(t, Eviction{Trader: bob, OrderID: oid(100, 0), Side: state.Ask, BaseLots: 2, Reason: EvictExpired}, res.Evictions[0])
	require.Len(t, res.Fills, 1)
	assert.Equal(t, carol, res.Fills[0].Maker)
	assert.Equal(t, q.BaseLots(3), res.MatchedBaseLots)

	assert.Equal(t, state.TraderState{BaseLotsFree: 2}, h.trader(bob))
	assert.Equal(t, state.Tick(101), h.market().BestAskPrice)
	assert.Equal(t, q.BaseLots(2), h.order(101, 0).NumBaseLots)
}

func TestMatchLimitCountsEvictions(t *testing.T) {
	h := newHarness(t, unitParams)
	stale := limit(state.Ask, 100, 2)
	stale.Expiry = state.Expiry{LastValid: 1_500}
	h.mustPlace(bob, stale)
	h.mustPlace(carol, limit(state.Ask, 101, 5))
	h.chain.Time = 2_000

	p := limit(state.Bid, 101, 3)
	p.MatchLimit = 1
	res := h.mustPlace(alice, p)

	assert.Len(t, res.Evictions, 1)
	assert.Empty(t, res.Fills)
	assert.Nil(t, res.Placed, "the remainder still crosses and must not rest")
	assert.True(t, h.market().IsEmpty(state.Bid))
}

func TestExpiredIncomingOrderIsNoop(t *testing.T) {
	h := newHarness(t, unitParams)
	h.chain.Block = 50
	before := h.snapshot()

	p := limit(state.Bid, 100, 1)
	p.Expiry = state.Expiry{TrackBlock: true, LastValid: 49}
	res := h.mustPlace(alice, p)

	assert.True(t, res.Expired)
	assert.Equal(t, before, h.store)
}

func TestSelfTradeAbortLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))
	before := h.snapshot()

	p := limit(state.Bid, 100, 3)
	p.SelfTrade = Abort
	_, err := h.place(bob, p)

	require.ErrorIs(t, err, ErrSelfTrade)
	assert.Equal(t, before, h.store)
}

func TestSelfTradeCancelProvide(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))
	h.mustPlace(carol, limit(state.Ask, 101, 5))

	p := limit(state.Bid, 101, 3)
	p.SelfTrade = CancelProvide
	res := h.mustPlace(bob, p)

	require.Len(t, res.Evictions, 1)
	assert.Equal(t, EvictSelfTrade, res.Evictions[0].Reason)
	assert.Equal(t, q.QuoteLots(0), res.FeeQuoteLots)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, carol, res.Fills[0].Maker)

	tr := h.trader(bob)
	assert.Equal(t, q.BaseLots(0), tr.BaseLotsLocked)
	assert.Equal(t, q.BaseLots(5), tr.BaseLotsFree, "the cancelled ask is refunded")
	assert.Equal(t, Transfers{QuoteLotsIn: 303, BaseLotsOut: 3}, res.Transfers)
	assert.Equal(t, state.Tick(101), h.market().BestAskPrice)
}

func TestSelfTradeDecrementTake(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))

	p := limit(state.Bid, 100, 3)
	p.SelfTrade = DecrementTake
	res := h.mustPlace(bob, p)

	assert.Empty(t, res.Fills)
	assert.Equal(t, q.BaseLots(0), res.MatchedBaseLots)
	assert.Equal(t, q.QuoteLots(0), res.FeeQuoteLots)
	assert.Nil(t, res.Placed)
	require.Len(t, res.Evictions, 1)
	assert.Equal(t, q.BaseLots(3), res.Evictions[0].BaseLots)
	assert.Equal(t, q.BaseLots(2), res.Evictions[0].Remaining)

	assert.Equal(t, q.BaseLots(2), h.order(100, 0).NumBaseLots)
	assert.Equal(t, state.TraderState{BaseLotsFree: 3, BaseLotsLocked: 2}, h.trader(bob))
}

func TestPostOnly(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))

	p := postOnly(state.Bid, 105, 2)
	p.RejectPostOnly = true
	_, err := h.place(alice, p)
	require.ErrorIs(t, err, ErrPostOnlyCross)

	res := h.mustPlace(alice, postOnly(state.Bid, 105, 2))
	require.NotNil(t, res.Placed)
	assert.Equal(t, oid(99, 0), *res.Placed)
	assert.Empty(t, res.Fills)
	assert.Equal(t, Transfers{QuoteLotsIn: 198}, res.Transfers)
	assert.Equal(t, q.QuoteLots(198), h.trader(alice).QuoteLotsLocked)

	m := h.market()
	assert.Equal(t, state.Tick(99), m.BestBidPrice)
	assert.Equal(t, state.Tick(100), m.BestAskPrice)
}

func TestPostOnlyEvictsExpiredCrossingOrders(t *testing.T) {
	h := newHarness(t, unitParams)
	stale := limit(state.Ask, 100, 5)
	stale.Expiry = state.Expiry{TrackBlock: true, LastValid: 3}
	h.mustPlace(bob, stale)
	h.chain.Block = 4

	p := postOnly(state.Bid, 105, 2)
	p.RejectPostOnly = true
	res := h.mustPlace(alice, p)

	require.Len(t, res.Evictions, 1)
	assert.Equal(t, oid(105, 0), *res.Placed)
	assert.True(t, h.market().IsEmpty(state.Ask))
	assert.Equal(t, q.BaseLots(5), h.trader(bob).BaseLotsFree)
}

func TestRemainderSearchesOutward(t *testing.T) {
	h := newHarness(t, unitParams)
	for i := 0; i < state.SlotsPerTick; i++ {
		h.mustPlace(bob, limit(state.Bid, 100, 1))
	}

	_, err := h.place(alice, limit(state.Bid, 100, 1))
	require.ErrorIs(t, err, ErrNoFreeSlot)

	p := limit(state.Bid, 100, 1)
	p.MaxTickOffset = 2
	res := h.mustPlace(alice, p)
	assert.Equal(t, oid(99, 0), *res.Placed)
	assert.Equal(t, q.QuoteLots(99), h.trader(alice).QuoteLotsLocked)
}

func TestFeeRounding(t *testing.T) {
	params := MarketParams{
		BaseLotsPerBaseUnit:            10,
		TickSizeInQuoteLotsPerBaseUnit: 10,
		TakerFeeBps:                    3,
		BaseLotSize:                    1,
		QuoteLotSize:                   1,
	}
	h := newHarness(t, params)

	h.mustPlace(bob, limit(state.Ask, 13, 7))
	buy := h.mustPlace(alice, limit(state.Bid, 13, 7))
	assert.Equal(t, q.QuoteLots(91), buy.MatchedQuoteLots)
	assert.Equal(t, q.QuoteLots(1), buy.FeeQuoteLots)
	assert.Equal(t, q.QuoteLots(92), buy.Transfers.QuoteLotsIn, "buys round the fee up")

	h.mustPlace(carol, limit(state.Bid, 13, 7))
	sell := h.mustPlace(dave, ioc(state.Ask, 13, 7))
	assert.Equal(t, q.QuoteLots(90), sell.Transfers.QuoteLotsOut, "sells receive the complement")
	assert.Equal(t, q.BaseLots(7), sell.Transfers.BaseLotsIn)

	m := h.market()
	assert.Equal(t, q.QuoteLots(2), m.CollectedQuoteLotFees)
	assert.Equal(t, q.QuoteLots(2), m.UnclaimedQuoteLotFees)
}

func TestIOCQuoteBudget(t *testing.T) {
	params := unitParams
	params.TakerFeeBps = 100
	h := newHarness(t, params)
	h.mustPlace(bob, limit(state.Ask, 100, 5))
	h.mustPlace(bob, limit(state.Ask, 101, 5))

	p := OrderPacket{Side: state.Bid, Type: ImmediateOrCancel, Price: 101, NumQuoteLots: 350}
	res := h.mustPlace(alice, p)

	assert.Equal(t, q.BaseLots(3), res.MatchedBaseLots)
	assert.Equal(t, q.QuoteLots(300), res.MatchedQuoteLots)
	assert.Equal(t, q.QuoteLots(3), res.FeeQuoteLots)
	assert.LessOrEqual(t, uint64(res.Transfers.QuoteLotsIn), uint64(350))
}

func TestUseOnlyDepositedFunds(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))
	require.NoError(t, h.do(func(e *Engine) error {
		e.Deposit(alice, 0, 1_000)
		return nil
	}))

	p := limit(state.Bid, 100, 3)
	p.UseOnlyDepositedFunds = true
	res := h.mustPlace(alice, p)
	assert.Equal(t, Transfers{}, res.Transfers)
	assert.Equal(t, state.TraderState{QuoteLotsFree: 700, BaseLotsFree: 3}, h.trader(alice))

	p = limit(state.Bid, 100, 10)
	p.UseOnlyDepositedFunds = true
	_, err := h.place(alice, p)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestFreeFundsAreUsedFirst(t *testing.T) {
	h := newHarness(t, unitParams)
	h.mustPlace(bob, limit(state.Ask, 100, 5))
	require.NoError(t, h.do(func(e *Engine) error {
		e.Deposit(alice, 0, 100)
		return nil
	}))

	res := h.mustPlace(alice, limit(state.Bid, 100, 3))
	assert.Equal(t, Transfers{QuoteLotsIn: 200, BaseLotsOut: 3}, res.Transfers)
	assert.Equal(t, state.TraderState{}, h.trader(alice))
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		p    OrderPacket
		err  error
	}{
		{"bid at tick 0", limit(state.Bid, 0, 1), ErrInvalidPrice},
		{"tick overflow", limit(state.Ask, uint64(state.MaxTick)+1, 1), ErrInvalidPrice},
		{"empty", limit(state.Bid, 10, 0), ErrEmptyOrder},
		{"ioc with both budgets", OrderPacket{Side: state.Bid, Type: ImmediateOrCancel, Price: 10, NumBaseLots: 1, NumQuoteLots: 1}, ErrInvalidIOCBudget},
		{"too large", limit(state.Ask, 10, state.MaxRestingBaseLots+1), ErrOrderTooLarge},
		{"bad side", OrderPacket{Side: 7, Type: Limit, Price: 10, NumBaseLots: 1}, ErrInvalidSide},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, unitParams)
			_, err := h.place(alice, tc.p)
			require.ErrorIs(t, err, tc.err)
			assert.Empty(t, h.store)
		})
	}
}

func TestAskAtTickZeroIsFlooredToOne(t *testing.T) {
	h := newHarness(t, unitParams)
	res := h.mustPlace(bob, limit(state.Ask, 0, 1))
	assert.Equal(t, oid(1, 0), *res.Placed)
}

func TestMarketParamsValidate(t *testing.T) {
	p := unitParams
	p.TickSizeInQuoteLotsPerBaseUnit = 15
	p.BaseLotsPerBaseUnit = 10
	assert.ErrorIs(t, p.Validate(), ErrInvalidMarketParams)

	p = unitParams
	p.TakerFeeBps = 10_000
	assert.ErrorIs(t, p.Validate(), ErrInvalidMarketParams)
}

var wideTickParams = MarketParams{
	BaseLotsPerBaseUnit:            1 << 16,
	TickSizeInQuoteLotsPerBaseUnit: 1 << 16,
	BaseLotSize:                    1,
	QuoteLotSize:                   1,
}

func TestBaseSizedOrdersFillPastAdjustedRange(t *testing.T) {
	const lots = q.BaseLots(1 << 31)
	const tick = 1 << 20

	for _, tt := range []struct {
		name   string
		packet OrderPacket
	}{
		{"ioc", ioc(state.Bid, tick, lots)},
		{"limit", limit(state.Bid, tick, lots)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, wideTickParams)
			h.mustPlace(bob, limit(state.Ask, tick, lots))

			res := h.mustPlace(alice, tt.packet)
			assert.Equal(t, lots, res.MatchedBaseLots)
			assert.Equal(t, q.QuoteLots(1<<51), res.MatchedQuoteLots)
			assert.Nil(t, res.Placed)
			assert.True(t, h.market().IsEmpty(state.Ask))
			assert.True(t, h.market().IsEmpty(state.Bid))
			assert.Equal(t, state.TraderState{QuoteLotsFree: 1 << 51}, h.trader(bob))
		})
	}
}

func TestQuoteBudgetStillCapsFill(t *testing.T) {
	h := newHarness(t, wideTickParams)
	h.mustPlace(bob, limit(state.Ask, 1<<20, 1<<31))

	p := OrderPacket{Side: state.Bid, Type: ImmediateOrCancel, Price: 1 << 20, NumQuoteLots: 1 << 40}
	res := h.mustPlace(alice, p)
	assert.Equal(t, q.BaseLots(1<<20), res.MatchedBaseLots)
	assert.Equal(t, q.QuoteLots(1<<40), res.MatchedQuoteLots)
	assert.Equal(t, q.BaseLots(1<<31-1<<20), h.order(1<<20, 0).NumBaseLots)
}
