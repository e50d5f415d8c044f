package wire

import (
	"errors"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
)

// Class groups errors by how a transport should report them.
type Class int

const (
	ClassInternal Class = iota
	ClassInvalid
	ClassRejected
	ClassNotFound
	ClassUnavailable
)

var classes = []struct {
	err   error
	class Class
}{
	{ErrBadRequest, ClassInvalid},
	{matching.ErrInvalidPrice, ClassInvalid},
	{matching.ErrInvalidSide, ClassInvalid},
	{matching.ErrEmptyOrder, ClassInvalid},
	{matching.ErrInvalidIOCBudget, ClassInvalid},
	{matching.ErrOrderTooLarge, ClassInvalid},
	{matching.ErrUnsortedOrderIDs, ClassInvalid},
	{matching.ErrInvalidMarketParams, ClassInvalid},

	{matching.ErrPostOnlyCross, ClassRejected},
	{matching.ErrSelfTrade, ClassRejected},
	{matching.ErrBelowMinimumFill, ClassRejected},
	{matching.ErrNoFreeSlot, ClassRejected},
	{matching.ErrInsufficientFunds, ClassRejected},
	{matching.ErrNotOrderOwner, ClassRejected},

	{matching.ErrOrderNotFound, ClassNotFound},
	{service.ErrUnavailable, ClassUnavailable},
}

func Classify(err error) Class {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassInternal
}
