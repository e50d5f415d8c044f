package matching

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// PlaceMultiplePostOnly rests a batch of post-only orders without matching.
// Each side is sorted away from the centre and inserted in one pass.
func (e *Engine) PlaceMultiplePostOnly(trader common.Address, reqs []PostOnlyRequest, opts MultipleOptions) (*MultipleResult, error) {
	type pending struct {
		PostOnlyRequest
		price state.Tick
	}
	var bySide [2][]pending
	for _, r := range reqs {
		price, err := validatePrice(r.Side, r.Price)
		if err != nil {
			return nil, err
		}
		if r.NumBaseLots == 0 {
			return nil, ErrEmptyOrder
		}
		if r.NumBaseLots > state.MaxRestingBaseLots {
			return nil, fmt.Errorf("%w: %d base lots", ErrOrderTooLarge, r.NumBaseLots)
		}
		if _, ok := e.params.QuoteLots(r.NumBaseLots, price); !ok {
			return nil, fmt.Errorf("%w: %d base lots at tick %d", ErrOrderTooLarge, r.NumBaseLots, price)
		}
		bySide[r.Side] = append(bySide[r.Side], pending{PostOnlyRequest: r, price: price})
	}

	res := &MultipleResult{}
	if e.clock.IsExpired(opts.Expiry) {
		return res, nil
	}

	var need funds
	for _, side := range []state.Side{state.Bid, state.Ask} {
		batch := bySide[side]
		if len(batch) == 0 {
			continue
		}
		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].price.CloserToCentre(side, batch[j].price)
		})

		// The batch is sorted, so its first order crosses deepest.
		e.evictExpiredCrossing(side, batch[0].price, &res.Evictions)

		ins := e.book.Inserter(side)
		for _, r := range batch {
			if e.market.Crosses(side, r.price) {
				if opts.RejectCross {
					return nil, fmt.Errorf("%w: %s at tick %d", ErrPostOnlyCross, side, r.price)
				}
				res.Skipped = append(res.Skipped, r.PostOnlyRequest)
				continue
			}
			slot, ok := ins.FreeSlot(r.price)
			if !ok {
				if opts.RejectCross {
					return nil, fmt.Errorf("%w: tick %d", ErrNoFreeSlot, r.price)
				}
				res.Skipped = append(res.Skipped, r.PostOnlyRequest)
				continue
			}
			id := state.OrderID{Price: r.price, Index: slot}
			ins.Activate(id)
			state.WriteRestingOrder(e.store, id, state.RestingOrder{
				Trader:      trader,
				NumBaseLots: r.NumBaseLots,
				Expiry:      opts.Expiry,
			})
			l := e.lock(trader, side, id, r.NumBaseLots)
			need.base += l.base
			need.quote += l.quote
			res.Placed = append(res.Placed, Placement{
				OrderID:       id,
				Side:          side,
				BaseLots:      r.NumBaseLots,
				ClientOrderID: r.ClientOrderID,
			})
		}
		ins.Commit()
	}

	tr, err := settle(e.trader(trader), need, funds{}, opts.UseOnlyDepositedFunds)
	if err != nil {
		return nil, err
	}
	res.Transfers = tr
	e.flush()
	return res, nil
}
