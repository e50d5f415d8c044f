package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

/*
PlaceOrder runs an order through its stages in order:

	validate -> expiry -> post-only cross check -> match -> fee ->
	post remainder -> IOC minimum -> free funds

An order that is already expired is accepted and does nothing.
*/
func (e *Engine) PlaceOrder(trader common.Address, p OrderPacket) (*Result, error) {
	b, err := e.validate(&p)
	if err != nil {
		return nil, err
	}
	res := &Result{Side: p.Side, Type: p.Type}

	if e.clock.IsExpired(p.Expiry) {
		res.Expired = true
		return res, nil
	}

	price := b.price
	if p.Type == PostOnly {
		if price, err = e.checkPostOnly(&p, price, res); err != nil {
			return nil, err
		}
	}

	m := matchState{base: b.base, adjusted: b.adjusted, quoteCapped: b.quoteCapped}
	if p.Type != PostOnly {
		if err := e.match(trader, &p, price, &m, res); err != nil {
			return nil, err
		}
	}

	res.MatchedBaseLots = m.matchedBase
	res.MatchedQuoteLots = m.matchedQuote
	res.FeeQuoteLots = e.chargeFee(m.matchedQuote)

	var locked funds
	remaining := m.base
	if p.Type != ImmediateOrCancel && remaining > 0 && !e.market.Crosses(p.Side, price) {
		id, err := e.postRemainder(trader, &p, price, remaining)
		if err != nil {
			return nil, err
		}
		res.Placed = &id
		res.PlacedBaseLots = remaining
		locked = e.lock(trader, p.Side, id, remaining)
	}

	if p.Type == ImmediateOrCancel {
		if res.MatchedBaseLots < p.MinBaseLotsToFill || res.MatchedQuoteLots < p.MinQuoteLotsToFill {
			return nil, fmt.Errorf("%w: matched %d base / %d quote lots, need %d / %d", ErrBelowMinimumFill,
				res.MatchedBaseLots, res.MatchedQuoteLots, p.MinBaseLotsToFill, p.MinQuoteLotsToFill)
		}
	}

	var need, got funds
	if p.Side == state.Bid {
		need.quote = res.MatchedQuoteLots + res.FeeQuoteLots + locked.quote
		got.base = res.MatchedBaseLots
	} else {
		need.base = res.MatchedBaseLots + locked.base
		got.quote = q.QuoteLots(q.SaturatingSub(uint64(res.MatchedQuoteLots), uint64(res.FeeQuoteLots)))
	}
	res.Transfers, err = settle(e.trader(trader), need, got, p.UseOnlyDepositedFunds)
	if err != nil {
		return nil, err
	}

	e.flush()
	return res, nil
}

// chargeFee accrues the taker fee on the matched amount and returns it in
// quote lots, rounded up.
func (e *Engine) chargeFee(matched q.QuoteLots) q.QuoteLots {
	if matched == 0 || e.params.TakerFeeBps == 0 {
		return 0
	}
	fee := q.QuoteLots(q.MulDivCeil(uint64(matched), e.params.TakerFeeBps, bpsDenominator))
	e.market.AccrueFees(fee)
	return fee
}
