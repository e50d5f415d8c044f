package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Tag separates the key spaces of the different record kinds.
type Tag byte

const (
	TagMarket Tag = iota
	TagTrader
	TagOrder
	TagBitmap
	TagList
	TagMeta
)

func deriveKey(tag Tag, parts ...[]byte) Key {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{byte(tag)})
	for _, p := range parts {
		h.Write(p)
	}
	var k Key
	h.Sum(k[:0])
	return k
}

func MarketKey() Key {
	return deriveKey(TagMarket)
}

func TraderKey(addr common.Address) Key {
	return deriveKey(TagTrader, addr.Bytes())
}

func OrderKey(id OrderID) Key {
	var b [5]byte
	binary.BigEndian.PutUint32(b[:4], uint32(id.Price))
	b[4] = byte(id.Index)
	return deriveKey(TagOrder, b[:])
}

// BitmapKey is shared by both sides: a group holds bids below the spread and
// asks above it.
func BitmapKey(outer OuterIndex) Key {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(outer))
	return deriveKey(TagBitmap, b[:])
}

func ListKey(side Side, slot uint16) Key {
	var b [3]byte
	b[0] = byte(side)
	binary.BigEndian.PutUint16(b[1:], slot)
	return deriveKey(TagList, b[:])
}

// MetaKey names a slot owned by the host rather than the book.
func MetaKey(name string) Key {
	return deriveKey(TagMeta, []byte(name))
}
