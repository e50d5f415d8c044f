package matching

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	dave  = common.HexToAddress("0x000000000000000000000000000000000000da7e")
)

// unitParams price one base lot at one quote lot per tick, with no fee.
var unitParams = MarketParams{
	BaseLotsPerBaseUnit:            1,
	TickSizeInQuoteLotsPerBaseUnit: 1,
	BaseLotSize:                    1,
	QuoteLotSize:                   1,
}

type harness struct {
	t      *testing.T
	params MarketParams
	store  state.MapStore
	chain  *state.FixedChain
}

func newHarness(t *testing.T, p MarketParams) *harness {
	require.NoError(t, p.Validate())
	return &harness{t: t, params: p, store: state.MapStore{}, chain: &state.FixedChain{Block: 1, Time: 1_000}}
}

// do runs fn as one request: its writes land only if it succeeds.
func (h *harness) do(fn func(e *Engine) error) error {
	buf := state.NewBuffer(h.store)
	e := New(h.params, buf, h.chain)
	if err := fn(e); err != nil {
		buf.Discard()
		return err
	}
	return buf.Commit()
}

func (h *harness) place(trader common.Address, p OrderPacket) (*Result, error) {
	var res *Result
	err := h.do(func(e *Engine) error {
		var err error
		res, err = e.PlaceOrder(trader, p)
		return err
	})
	return res, err
}

func (h *harness) mustPlace(trader common.Address, p OrderPacket) *Result {
	h.t.Helper()
	res, err := h.place(trader, p)
	require.NoError(h.t, err)
	return res
}

func (h *harness) reduce(trader common.Address, reqs ...ReduceRequest) (*ReduceResult, error) {
	var res *ReduceResult
	err := h.do(func(e *Engine) error {
		var err error
		res, err = e.ReduceOrders(trader, reqs)
		return err
	})
	return res, err
}

func (h *harness) market() state.MarketState { return state.LoadMarketState(h.store) }

func (h *harness) trader(a common.Address) state.TraderState {
	return state.LoadTraderState(h.store, a)
}

func (h *harness) order(price state.Tick, index state.RestingOrderIndex) state.RestingOrder {
	return state.ReadRestingOrder(h.store, state.OrderID{Price: price, Index: index})
}

func (h *harness) depth(side state.Side) []orderbook.Level {
	m := h.market()
	return orderbook.Depth(h.store, &m, side, 0)
}

func (h *harness) snapshot() state.MapStore {
	c := make(state.MapStore, len(h.store))
	for k, v := range h.store {
		c[k] = v
	}
	return c
}

func limit(side state.Side, price uint64, lots q.BaseLots) OrderPacket {
	return OrderPacket{Side: side, Type: Limit, Price: price, NumBaseLots: lots}
}

func ioc(side state.Side, price uint64, lots q.BaseLots) OrderPacket {
	return OrderPacket{Side: side, Type: ImmediateOrCancel, Price: price, NumBaseLots: lots}
}

func postOnly(side state.Side, price uint64, lots q.BaseLots) OrderPacket {
	return OrderPacket{Side: side, Type: PostOnly, Price: price, NumBaseLots: lots}
}

func oid(price state.Tick, index state.RestingOrderIndex) state.OrderID {
	return state.OrderID{Price: price, Index: index}
}
