package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

type funds struct {
	base  q.BaseLots
	quote q.QuoteLots
}

// lock backs a newly posted order with the trader's funds.
func (e *Engine) lock(trader common.Address, side state.Side, id state.OrderID, size q.BaseLots) funds {
	t := e.trader(trader)
	if side == state.Ask {
		t.LockBase(size)
		return funds{base: size}
	}
	quote, _ := e.params.QuoteLots(size, id.Price)
	t.LockQuote(quote)
	return funds{quote: quote}
}

/*
settle nets what an order needs against the trader's free balance.

Free funds are spent first and only the shortfall is transferred in.
Proceeds are transferred out. With onlyDeposited nothing moves: proceeds are
credited to the free balance first and the order fails if that balance
cannot cover what it needs.
*/
func settle(t *state.TraderState, need, got funds, onlyDeposited bool) (Transfers, error) {
	if onlyDeposited {
		base := q.SaturatingAdd(uint64(t.BaseLotsFree), uint64(got.base))
		quote := q.SaturatingAdd(uint64(t.QuoteLotsFree), uint64(got.quote))
		if base < uint64(need.base) || quote < uint64(need.quote) {
			return Transfers{}, fmt.Errorf("%w: need %d base / %d quote lots, have %d / %d",
				ErrInsufficientFunds, need.base, need.quote, base, quote)
		}
		t.BaseLotsFree = q.BaseLots(base - uint64(need.base))
		t.QuoteLotsFree = q.QuoteLots(quote - uint64(need.quote))
		return Transfers{}, nil
	}

	var tr Transfers
	fromFree := min(t.BaseLotsFree, need.base)
	t.BaseLotsFree -= fromFree
	tr.BaseLotsIn = need.base - fromFree

	quoteFromFree := min(t.QuoteLotsFree, need.quote)
	t.QuoteLotsFree -= quoteFromFree
	tr.QuoteLotsIn = need.quote - quoteFromFree

	tr.BaseLotsOut = got.base
	tr.QuoteLotsOut = got.quote
	return tr, nil
}
