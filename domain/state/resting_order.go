package state

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
)

// MaxRestingBaseLots is the largest size the 4-byte record field can hold.
const MaxRestingBaseLots = quantities.BaseLots(math.MaxUint32)

// Expiry bounds the life of a resting order. LastValid == 0 never expires.
type Expiry struct {
	TrackBlock bool
	LastValid  uint32
}

func (e Expiry) IsSet() bool { return e.LastValid != 0 }

// IsExpired compares against the block number or the timestamp, depending
// on TrackBlock.
func (e Expiry) IsExpired(block, timestamp uint32) bool {
	if e.LastValid == 0 {
		return false
	}
	if e.TrackBlock {
		return block > e.LastValid
	}
	return timestamp > e.LastValid
}

// RestingOrder layout:
//
//	[0:20]  trader address
//	[20:24] base lots, big endian
//	[24:28] last valid block or timestamp
//	[28]    1 when the expiry tracks blocks
type RestingOrder struct {
	Trader      common.Address
	NumBaseLots quantities.BaseLots
	Expiry      Expiry
}

func (o RestingOrder) IsExpired(block, timestamp uint32) bool {
	return o.Expiry.IsExpired(block, timestamp)
}

func (o RestingOrder) Encode() Slot {
	if o.NumBaseLots > MaxRestingBaseLots {
		panic(fmt.Sprintf("state: resting order size %d exceeds record width", o.NumBaseLots))
	}
	var s Slot
	copy(s[0:20], o.Trader[:])
	binary.BigEndian.PutUint32(s[20:24], uint32(o.NumBaseLots))
	binary.BigEndian.PutUint32(s[24:28], o.Expiry.LastValid)
	if o.Expiry.TrackBlock {
		s[28] = 1
	}
	return s
}

func DecodeRestingOrder(s Slot) RestingOrder {
	var o RestingOrder
	copy(o.Trader[:], s[0:20])
	o.NumBaseLots = quantities.BaseLots(binary.BigEndian.Uint32(s[20:24]))
	o.Expiry.LastValid = binary.BigEndian.Uint32(s[24:28])
	o.Expiry.TrackBlock = s[28] == 1
	return o
}

// ReadRestingOrder loads the record without checking the occupancy bit.
// Callers only read ids the index reports as present.
func ReadRestingOrder(s Store, id OrderID) RestingOrder {
	return DecodeRestingOrder(s.Get(OrderKey(id)))
}

func WriteRestingOrder(s Store, id OrderID, o RestingOrder) {
	s.Set(OrderKey(id), o.Encode())
}
