package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

/*
ReduceOrders shrinks or cancels a trader's resting orders.

Ids are assigned to a side by comparing them with the best prices at the
start of the call. Within a side they must move away from the best price.
Bids are processed first with one cursor, then asks with another, so each
side's best price is recomputed at most once.

A missing order, or one owned by someone else, fails the whole call when
its request asks for that and is skipped otherwise.
*/
func (e *Engine) ReduceOrders(trader common.Address, reqs []ReduceRequest) (*ReduceResult, error) {
	res := &ReduceResult{}
	var bids, asks []ReduceRequest

	for _, r := range reqs {
		id := r.OrderID
		side, ok := orderbook.SideOf(&e.market, id.Price)
		switch {
		case ok && side == state.Bid:
			bids = append(bids, r)
		case ok:
			asks = append(asks, r)
		case r.RevertOnFailure:
			return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, id)
		default:
			res.Skipped = append(res.Skipped, id)
		}
	}
	if err := checkOutward(state.Bid, bids); err != nil {
		return nil, err
	}
	if err := checkOutward(state.Ask, asks); err != nil {
		return nil, err
	}

	if err := e.reduceSide(trader, state.Bid, bids, res); err != nil {
		return nil, err
	}
	if err := e.reduceSide(trader, state.Ask, asks, res); err != nil {
		return nil, err
	}

	e.flush()
	return res, nil
}

func checkOutward(side state.Side, reqs []ReduceRequest) error {
	for i := 1; i < len(reqs); i++ {
		prev, cur := reqs[i-1].OrderID, reqs[i].OrderID
		if cur.CloserToCentre(side, prev) {
			return fmt.Errorf("%w: %v after %v", ErrUnsortedOrderIDs, cur, prev)
		}
	}
	return nil
}

func (e *Engine) reduceSide(trader common.Address, side state.Side, reqs []ReduceRequest, res *ReduceResult) error {
	if len(reqs) == 0 {
		return nil
	}
	c := e.book.Cursor(side)
	for _, r := range reqs {
		id := r.OrderID
		if !c.Find(id) {
			if r.RevertOnFailure {
				return fmt.Errorf("%w: %v", ErrOrderNotFound, id)
			}
			res.Skipped = append(res.Skipped, id)
			continue
		}
		o := state.ReadRestingOrder(e.store, id)
		if o.Trader != trader {
			if r.RevertOnFailure {
				return fmt.Errorf("%w: %v", ErrNotOrderOwner, id)
			}
			res.Skipped = append(res.Skipped, id)
			continue
		}

		lots := r.Lots
		if lots == 0 || lots >= o.NumBaseLots {
			lots = o.NumBaseLots
		}
		e.release(side, id, trader, lots)
		if side == state.Ask {
			res.BaseLotsReleased += lots
		} else {
			quote, _ := e.params.QuoteLots(lots, id.Price)
			res.QuoteLotsReleased += quote
		}

		o.NumBaseLots -= lots
		e.storeOrRemove(c, id, o)
		res.Reductions = append(res.Reductions, Reduction{
			OrderID:   id,
			Side:      side,
			Removed:   lots,
			Remaining: o.NumBaseLots,
		})
	}
	c.Commit()
	return nil
}

// CancelAll removes every order the trader has on both sides. It walks the
// whole book, so it is meant for operators and tests rather than hot paths.
func (e *Engine) CancelAll(trader common.Address) (*ReduceResult, error) {
	var reqs []ReduceRequest
	for _, side := range []state.Side{state.Bid, state.Ask} {
		e.book.Walk(side, func(id state.OrderID, o state.RestingOrder) bool {
			if o.Trader == trader {
				reqs = append(reqs, ReduceRequest{OrderID: id})
			}
			return true
		})
	}
	return e.ReduceOrders(trader, reqs)
}
