package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trader = "0x00000000000000000000000000000000000000aa"

func TestPlaceOrderDecode(t *testing.T) {
	req := PlaceOrderRequest{
		Trader:        trader,
		Side:          "sell",
		Type:          "ioc",
		Price:         100,
		QuoteLots:     50,
		SelfTrade:     "decrement_take",
		Expiry:        &Expiry{TrackBlock: true, LastValid: 9},
		ClientOrderID: 3,
	}
	addr, p, err := req.Decode()
	require.NoError(t, err)
	assert.Equal(t, trader, strings.ToLower(addr.Hex()))
	assert.Equal(t, state.Ask, p.Side)
	assert.Equal(t, matching.ImmediateOrCancel, p.Type)
	assert.Equal(t, matching.DecrementTake, p.SelfTrade)
	assert.Equal(t, q.QuoteLots(50), p.NumQuoteLots)
	assert.Equal(t, state.Expiry{TrackBlock: true, LastValid: 9}, p.Expiry)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := []PlaceOrderRequest{
		{Trader: "nope", Side: "bid"},
		{Trader: trader, Side: "up"},
		{Trader: trader, Side: "bid", Type: "market"},
		{Trader: trader, Side: "bid", SelfTrade: "ignore"},
	}
	for i, c := range cases {
		_, _, err := c.Decode()
		assert.ErrorIs(t, err, ErrBadRequest, "case %d", i)
	}

	_, err := OrderID{Price: uint64(state.MaxTick) + 1}.Domain()
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = OrderID{Price: 10, Index: state.SlotsPerTick}.Domain()
	assert.ErrorIs(t, err, ErrBadRequest)

	r := ReduceOrdersRequest{Trader: trader, Orders: []ReduceEntry{{OrderID: OrderID{Price: 5, Index: 9}}}}
	_, _, err = r.Decode()
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestMarketViewHidesSentinels(t *testing.T) {
	conv := q.Converter{BaseLotSize: 1, QuoteLotSize: 1}
	v := NewMarketView(conv, state.NewMarketState(), 4)
	assert.Nil(t, v.BestBid)
	assert.Nil(t, v.BestAsk)
	assert.Equal(t, uint64(4), v.AppliedSeq)

	m := state.NewMarketState()
	m.BestBidPrice = 90
	m.BidsOuterIndices = 1
	v = NewMarketView(conv, m, 0)
	require.NotNil(t, v.BestBid)
	assert.Equal(t, uint64(90), *v.BestBid)
}

func TestAmountsFormatted(t *testing.T) {
	conv := q.Converter{BaseLotSize: 1000, QuoteLotSize: 10, BaseDecimals: 6, QuoteDecimals: 2}
	assert.Equal(t, Amount{Lots: 1500, Value: "1.5"}, Base(conv, 1500))
	assert.Equal(t, Amount{Lots: 25, Value: "2.5"}, Quote(conv, 25))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassInvalid, Classify(fmt.Errorf("x: %w", matching.ErrInvalidPrice)))
	assert.Equal(t, ClassRejected, Classify(matching.ErrInsufficientFunds))
	assert.Equal(t, ClassNotFound, Classify(matching.ErrOrderNotFound))
	assert.Equal(t, ClassUnavailable, Classify(fmt.Errorf("%w: commit", service.ErrUnavailable)))
	assert.Equal(t, ClassInternal, Classify(fmt.Errorf("disk")))
}
