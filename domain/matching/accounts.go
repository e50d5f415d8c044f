package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// Deposit credits lots the host has already received to the trader's free
// balance.
func (e *Engine) Deposit(trader common.Address, base q.BaseLots, quote q.QuoteLots) state.TraderState {
	t := e.trader(trader)
	t.BaseLotsFree = q.BaseLots(q.SaturatingAdd(uint64(t.BaseLotsFree), uint64(base)))
	t.QuoteLotsFree = q.QuoteLots(q.SaturatingAdd(uint64(t.QuoteLotsFree), uint64(quote)))
	e.flush()
	return *t
}

// Withdraw debits free lots. The host pays them out.
func (e *Engine) Withdraw(trader common.Address, base q.BaseLots, quote q.QuoteLots) (state.TraderState, error) {
	t := e.trader(trader)
	if t.BaseLotsFree < base || t.QuoteLotsFree < quote {
		return *t, fmt.Errorf("%w: withdraw %d base / %d quote lots, free %d / %d",
			ErrInsufficientFunds, base, quote, t.BaseLotsFree, t.QuoteLotsFree)
	}
	t.BaseLotsFree -= base
	t.QuoteLotsFree -= quote
	e.flush()
	return *t, nil
}

// CollectFees resets the unclaimed fee counter and returns what it held.
func (e *Engine) CollectFees() q.QuoteLots {
	fees := e.market.ClaimFees()
	e.flush()
	return fees
}
