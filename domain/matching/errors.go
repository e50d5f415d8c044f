package matching

import "errors"

// Validation errors. Returned before anything is written.
var (
	ErrInvalidPrice        = errors.New("matching: invalid price")
	ErrInvalidSide         = errors.New("matching: invalid side")
	ErrEmptyOrder          = errors.New("matching: order has no size")
	ErrInvalidIOCBudget    = errors.New("matching: immediate-or-cancel needs exactly one of base or quote budget")
	ErrOrderTooLarge       = errors.New("matching: order size overflows")
	ErrInvalidMarketParams = errors.New("matching: invalid market parameters")
)

// Errors raised while matching or posting. The request must be discarded.
var (
	ErrPostOnlyCross     = errors.New("matching: post-only order crosses the book")
	ErrSelfTrade         = errors.New("matching: self trade")
	ErrBelowMinimumFill  = errors.New("matching: fill below minimum")
	ErrNoFreeSlot        = errors.New("matching: no free resting order slot")
	ErrInsufficientFunds = errors.New("matching: insufficient deposited funds")
)

// Reduce errors.
var (
	ErrOrderNotFound    = errors.New("matching: order not found")
	ErrNotOrderOwner    = errors.New("matching: order belongs to another trader")
	ErrUnsortedOrderIDs = errors.New("matching: order ids must move away from the best price")
)
