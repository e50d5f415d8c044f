package matching

import (
	"fmt"

	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// budget is what a taker may still consume while matching. An unbounded
// base holds the uint64 maximum; adjusted only counts when quoteCapped.
type budget struct {
	price       state.Tick
	base        q.BaseLots
	adjusted    q.AdjustedQuoteLots
	quoteCapped bool
}

// validatePrice rejects a bid at tick 0 and floors an ask at tick 1.
func validatePrice(side state.Side, raw uint64) (state.Tick, error) {
	if side != state.Bid && side != state.Ask {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}
	if raw > uint64(state.MaxTick) {
		return 0, fmt.Errorf("%w: tick %d above %d", ErrInvalidPrice, raw, state.MaxTick)
	}
	if raw == 0 {
		if side == state.Bid {
			return 0, fmt.Errorf("%w: bid at tick 0", ErrInvalidPrice)
		}
		raw = 1
	}
	return state.NewTick(raw), nil
}

func (e *Engine) validate(p *OrderPacket) (budget, error) {
	price, err := validatePrice(p.Side, p.Price)
	if err != nil {
		return budget{}, err
	}
	b := budget{price: price, base: q.BaseLots(q.MaxLots), adjusted: q.AdjustedQuoteLots(q.MaxLots)}

	if p.NumBaseLots == 0 && p.NumQuoteLots == 0 {
		return budget{}, ErrEmptyOrder
	}

	if p.Type == ImmediateOrCancel {
		if p.NumBaseLots != 0 && p.NumQuoteLots != 0 {
			return budget{}, ErrInvalidIOCBudget
		}
		if p.NumBaseLots != 0 {
			b.base = p.NumBaseLots
		} else {
			b.adjusted = e.adjustedQuoteBudget(p.Side, p.NumQuoteLots)
			b.quoteCapped = true
			if b.adjusted == 0 {
				return budget{}, fmt.Errorf("%w: quote budget %d covers only fees", ErrEmptyOrder, p.NumQuoteLots)
			}
		}
		return b, nil
	}

	if p.NumBaseLots == 0 {
		return budget{}, ErrEmptyOrder
	}
	if p.NumBaseLots > state.MaxRestingBaseLots {
		return budget{}, fmt.Errorf("%w: %d base lots", ErrOrderTooLarge, p.NumBaseLots)
	}
	if _, ok := e.params.QuoteLots(p.NumBaseLots, price); !ok {
		return budget{}, fmt.Errorf("%w: %d base lots at tick %d", ErrOrderTooLarge, p.NumBaseLots, price)
	}
	b.base = p.NumBaseLots
	return b, nil
}

// adjustedQuoteBudget turns a quote lot budget into the adjusted quote lots
// that may be matched once the taker fee is accounted for. Buyers pay the fee
// on top; sellers have it taken from the proceeds.
func (e *Engine) adjustedQuoteBudget(side state.Side, quote q.QuoteLots) q.AdjustedQuoteLots {
	div := uint64(bpsDenominator + e.params.TakerFeeBps)
	if side == state.Ask {
		div = bpsDenominator - e.params.TakerFeeBps
	}
	lots := q.MulDivFloor(uint64(quote), bpsDenominator, div)
	return q.AdjustedQuoteLots(q.SaturatingMul(lots, uint64(e.params.BaseLotsPerBaseUnit)))
}
