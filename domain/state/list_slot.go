package state

import "encoding/binary"

const ListSlotEntries = 16

// ListSlot packs 16 big-endian outer indices of one side's index list.
type ListSlot [32]byte

func LoadListSlot(s Store, side Side, index uint16) ListSlot {
	return ListSlot(s.Get(ListKey(side, index)))
}

func (l *ListSlot) Write(s Store, side Side, index uint16) {
	s.Set(ListKey(side, index), Slot(*l))
}

func (l *ListSlot) Get(i int) OuterIndex {
	return OuterIndex(binary.BigEndian.Uint16(l[i*2:]))
}

func (l *ListSlot) Set(i int, o OuterIndex) {
	binary.BigEndian.PutUint16(l[i*2:], uint16(o))
}

// ListPosition splits a logical list position into slot and offset.
func ListPosition(pos int) (slot uint16, offset int) {
	return uint16(pos / ListSlotEntries), pos % ListSlotEntries
}
