package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
)

// TraderState holds one trader's balances. Locked lots back resting orders;
// free lots can be withdrawn or spent by new orders.
type TraderState struct {
	QuoteLotsFree   q.QuoteLots
	BaseLotsFree    q.BaseLots
	QuoteLotsLocked q.QuoteLots
	BaseLotsLocked  q.BaseLots
}

func LoadTraderState(s Store, addr common.Address) TraderState {
	return DecodeTraderState(s.Get(TraderKey(addr)))
}

func (t TraderState) Write(s Store, addr common.Address) {
	s.Set(TraderKey(addr), t.Encode())
}

func (t TraderState) Encode() Slot {
	var s Slot
	binary.BigEndian.PutUint64(s[0:8], uint64(t.QuoteLotsFree))
	binary.BigEndian.PutUint64(s[8:16], uint64(t.BaseLotsFree))
	binary.BigEndian.PutUint64(s[16:24], uint64(t.QuoteLotsLocked))
	binary.BigEndian.PutUint64(s[24:32], uint64(t.BaseLotsLocked))
	return s
}

func DecodeTraderState(s Slot) TraderState {
	return TraderState{
		QuoteLotsFree:   q.QuoteLots(binary.BigEndian.Uint64(s[0:8])),
		BaseLotsFree:    q.BaseLots(binary.BigEndian.Uint64(s[8:16])),
		QuoteLotsLocked: q.QuoteLots(binary.BigEndian.Uint64(s[16:24])),
		BaseLotsLocked:  q.BaseLots(binary.BigEndian.Uint64(s[24:32])),
	}
}

// ---------------- locking ----------------

func (t *TraderState) LockQuote(l q.QuoteLots) {
	t.QuoteLotsLocked = q.QuoteLots(q.SaturatingAdd(uint64(t.QuoteLotsLocked), uint64(l)))
}

func (t *TraderState) LockBase(l q.BaseLots) {
	t.BaseLotsLocked = q.BaseLots(q.SaturatingAdd(uint64(t.BaseLotsLocked), uint64(l)))
}

// UnlockQuote moves locked quote lots back to free.
func (t *TraderState) UnlockQuote(l q.QuoteLots) {
	t.QuoteLotsLocked = q.QuoteLots(q.SaturatingSub(uint64(t.QuoteLotsLocked), uint64(l)))
	t.QuoteLotsFree = q.QuoteLots(q.SaturatingAdd(uint64(t.QuoteLotsFree), uint64(l)))
}

func (t *TraderState) UnlockBase(l q.BaseLots) {
	t.BaseLotsLocked = q.BaseLots(q.SaturatingSub(uint64(t.BaseLotsLocked), uint64(l)))
	t.BaseLotsFree = q.BaseLots(q.SaturatingAdd(uint64(t.BaseLotsFree), uint64(l)))
}

// ---------------- fills ----------------

// ProcessLimitSell is the maker side of a fill against a resting ask: the
// locked base is consumed and the quote proceeds become free.
func (t *TraderState) ProcessLimitSell(base q.BaseLots, quote q.QuoteLots) {
	t.BaseLotsLocked = q.BaseLots(q.SaturatingSub(uint64(t.BaseLotsLocked), uint64(base)))
	t.QuoteLotsFree = q.QuoteLots(q.SaturatingAdd(uint64(t.QuoteLotsFree), uint64(quote)))
}

// ProcessLimitBuy is the maker side of a fill against a resting bid.
func (t *TraderState) ProcessLimitBuy(quote q.QuoteLots, base q.BaseLots) {
	t.QuoteLotsLocked = q.QuoteLots(q.SaturatingSub(uint64(t.QuoteLotsLocked), uint64(quote)))
	t.BaseLotsFree = q.BaseLots(q.SaturatingAdd(uint64(t.BaseLotsFree), uint64(base)))
}

func (t TraderState) IsZero() bool { return t == TraderState{} }
