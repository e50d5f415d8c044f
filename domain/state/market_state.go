package state

import (
	"encoding/binary"

	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
)

// MarketState layout:
//
//	[0:4]   best bid tick
//	[4:8]   best ask tick
//	[8:10]  bid outer index count
//	[10:12] ask outer index count
//	[12:20] collected quote lot fees
//	[20:28] unclaimed quote lot fees
type MarketState struct {
	BestBidPrice          Tick
	BestAskPrice          Tick
	BidsOuterIndices      uint16
	AsksOuterIndices      uint16
	CollectedQuoteLotFees q.QuoteLots
	UnclaimedQuoteLotFees q.QuoteLots
}

// EmptySentinel is the best price reported for a side with no orders.
func EmptySentinel(side Side) Tick {
	if side == Bid {
		return 0
	}
	return MaxTick
}

func NewMarketState() MarketState {
	return MarketState{BestBidPrice: EmptySentinel(Bid), BestAskPrice: EmptySentinel(Ask)}
}

// LoadMarketState normalises the best price of empty sides to the sentinel,
// so a never-written slot reads as an empty market.
func LoadMarketState(s Store) MarketState {
	m := DecodeMarketState(s.Get(MarketKey()))
	if m.BidsOuterIndices == 0 {
		m.BestBidPrice = EmptySentinel(Bid)
	}
	if m.AsksOuterIndices == 0 {
		m.BestAskPrice = EmptySentinel(Ask)
	}
	return m
}

func (m MarketState) Write(s Store) {
	s.Set(MarketKey(), m.Encode())
}

func (m MarketState) Encode() Slot {
	var s Slot
	binary.BigEndian.PutUint32(s[0:4], uint32(m.BestBidPrice))
	binary.BigEndian.PutUint32(s[4:8], uint32(m.BestAskPrice))
	binary.BigEndian.PutUint16(s[8:10], m.BidsOuterIndices)
	binary.BigEndian.PutUint16(s[10:12], m.AsksOuterIndices)
	binary.BigEndian.PutUint64(s[12:20], uint64(m.CollectedQuoteLotFees))
	binary.BigEndian.PutUint64(s[20:28], uint64(m.UnclaimedQuoteLotFees))
	return s
}

func DecodeMarketState(s Slot) MarketState {
	return MarketState{
		BestBidPrice:          Tick(binary.BigEndian.Uint32(s[0:4])),
		BestAskPrice:          Tick(binary.BigEndian.Uint32(s[4:8])),
		BidsOuterIndices:      binary.BigEndian.Uint16(s[8:10]),
		AsksOuterIndices:      binary.BigEndian.Uint16(s[10:12]),
		CollectedQuoteLotFees: q.QuoteLots(binary.BigEndian.Uint64(s[12:20])),
		UnclaimedQuoteLotFees: q.QuoteLots(binary.BigEndian.Uint64(s[20:28])),
	}
}

func (m MarketState) BestPrice(side Side) Tick {
	if side == Bid {
		return m.BestBidPrice
	}
	return m.BestAskPrice
}

func (m *MarketState) SetBestPrice(side Side, t Tick) {
	if side == Bid {
		m.BestBidPrice = t
	} else {
		m.BestAskPrice = t
	}
}

func (m MarketState) OuterCount(side Side) uint16 {
	if side == Bid {
		return m.BidsOuterIndices
	}
	return m.AsksOuterIndices
}

func (m *MarketState) SetOuterCount(side Side, n uint16) {
	if side == Bid {
		m.BidsOuterIndices = n
	} else {
		m.AsksOuterIndices = n
	}
}

func (m MarketState) IsEmpty(side Side) bool {
	return m.OuterCount(side) == 0
}

// GarbageRange is the closed tick interval that holds no live order on
// either side: strictly between the best bid and best ask, or the empty
// side's half of the book. Bits found there are stale.
func (m MarketState) GarbageRange() (lo, hi Tick, ok bool) {
	lo, hi = 0, MaxTick
	if !m.IsEmpty(Bid) {
		lo = m.BestBidPrice + 1
	}
	if !m.IsEmpty(Ask) {
		if m.BestAskPrice == 0 {
			return 0, 0, false
		}
		hi = m.BestAskPrice - 1
	}
	return lo, hi, lo <= hi
}

// Crosses reports whether an order on side at price would trade against the
// opposite side's best price.
func (m MarketState) Crosses(side Side, price Tick) bool {
	opp := side.Opposite()
	if m.IsEmpty(opp) {
		return false
	}
	best := m.BestPrice(opp)
	if side == Bid {
		return price >= best
	}
	return price <= best
}

// AccrueFees adds a taker fee to both fee counters.
func (m *MarketState) AccrueFees(fee q.QuoteLots) {
	m.CollectedQuoteLotFees = q.QuoteLots(q.SaturatingAdd(uint64(m.CollectedQuoteLotFees), uint64(fee)))
	m.UnclaimedQuoteLotFees = q.QuoteLots(q.SaturatingAdd(uint64(m.UnclaimedQuoteLotFees), uint64(fee)))
}

// ClaimFees zeroes the unclaimed counter and returns what it held.
func (m *MarketState) ClaimFees() q.QuoteLots {
	f := m.UnclaimedQuoteLotFees
	m.UnclaimedQuoteLotFees = 0
	return f
}
