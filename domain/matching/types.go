package matching

import (
	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

type OrderType int

const (
	Limit OrderType = iota
	PostOnly
	ImmediateOrCancel
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case PostOnly:
		return "post_only"
	default:
		return "ioc"
	}
}

type SelfTradeBehavior int

const (
	Abort SelfTradeBehavior = iota
	CancelProvide
	DecrementTake
)

// OrderPacket is one incoming order.
type OrderPacket struct {
	Side  state.Side
	Type  OrderType
	Price uint64 // ticks; validated into a state.Tick

	// Limit and post-only orders use NumBaseLots. Immediate-or-cancel orders
	// set exactly one of the two budgets.
	NumBaseLots  q.BaseLots
	NumQuoteLots q.QuoteLots

	MinBaseLotsToFill  q.BaseLots
	MinQuoteLotsToFill q.QuoteLots

	SelfTrade SelfTradeBehavior
	// MatchLimit bounds the resting orders touched. 0 means unlimited.
	MatchLimit uint64
	// RejectPostOnly rejects a crossing post-only order instead of moving
	// it one tick behind the crossing price.
	RejectPostOnly bool
	// MaxTickOffset is how many ticks away from the centre the remainder
	// may move when its own tick has no free slot.
	MaxTickOffset uint32

	UseOnlyDepositedFunds bool
	Expiry                state.Expiry
	ClientOrderID         uint64
}

type Fill struct {
	Maker          common.Address
	OrderID        state.OrderID
	BaseLots       q.BaseLots
	QuoteLots      q.QuoteLots
	MakerRemaining q.BaseLots
}

type EvictReason int

const (
	EvictExpired EvictReason = iota
	EvictSelfTrade
)

func (r EvictReason) String() string {
	if r == EvictExpired {
		return "expired"
	}
	return "self_trade"
}

// Eviction is a resting order removed or shrunk without a trade. Its funds
// went back to the maker's free balance.
type Eviction struct {
	Trader    common.Address
	OrderID   state.OrderID
	Side      state.Side
	BaseLots  q.BaseLots
	Remaining q.BaseLots
	Reason    EvictReason
}

// Transfers is what must move between the trader's wallet and the market
// outside the engine.
type Transfers struct {
	BaseLotsIn   q.BaseLots
	QuoteLotsIn  q.QuoteLots
	BaseLotsOut  q.BaseLots
	QuoteLotsOut q.QuoteLots
}

type Result struct {
	Side state.Side
	Type OrderType

	// Expired is set when the order was already past its expiry and did
	// nothing.
	Expired bool

	Placed         *state.OrderID
	PlacedBaseLots q.BaseLots

	MatchedBaseLots  q.BaseLots
	MatchedQuoteLots q.QuoteLots // before fees
	FeeQuoteLots     q.QuoteLots

	Fills     []Fill
	Evictions []Eviction
	Transfers Transfers
}

type ReduceRequest struct {
	OrderID state.OrderID
	// Lots to remove. 0 or at least the order size cancels it.
	Lots            q.BaseLots
	RevertOnFailure bool
}

type Reduction struct {
	OrderID   state.OrderID
	Side      state.Side
	Removed   q.BaseLots
	Remaining q.BaseLots
}

type ReduceResult struct {
	Reductions []Reduction
	Skipped    []state.OrderID

	BaseLotsReleased  q.BaseLots
	QuoteLotsReleased q.QuoteLots
}

// PostOnlyRequest is one order of a PlaceMultiplePostOnly batch.
type PostOnlyRequest struct {
	Side          state.Side
	Price         uint64
	NumBaseLots   q.BaseLots
	ClientOrderID uint64
}

type MultipleOptions struct {
	// RejectCross fails the batch on a crossing order; otherwise the order
	// is skipped.
	RejectCross           bool
	UseOnlyDepositedFunds bool
	Expiry                state.Expiry
}

type Placement struct {
	OrderID       state.OrderID
	Side          state.Side
	BaseLots      q.BaseLots
	ClientOrderID uint64
}

type MultipleResult struct {
	Placed    []Placement
	Skipped   []PostOnlyRequest
	Evictions []Eviction
	Transfers Transfers
}
