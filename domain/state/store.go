package state

import (
	"encoding/hex"
	"errors"
)

type (
	Key  [32]byte
	Slot [32]byte
)

func (k Key) String() string { return hex.EncodeToString(k[:]) }

func (s Slot) IsZero() bool { return s == Slot{} }

// Store is the 32-byte key/value primitive every record is persisted through.
// Get returns the zero slot for keys that were never written.
type Store interface {
	Get(Key) Slot
	Set(Key, Slot)
}

// Backend is the durable side of a Buffer. Apply must write the whole batch
// or nothing.
type Backend interface {
	Load(Key) (Slot, error)
	Apply(map[Key]Slot) error
}

var ErrBufferClosed = errors.New("state: buffer already committed or discarded")

// Stats counts storage traffic for one request.
type Stats struct {
	Reads        int // Get calls
	Writes       int // Set calls
	BackendReads int // Get calls that reached the backend
}

/*
Buffer is the per-request write-back cache in front of a Backend.

Nothing reaches the backend until Commit. A request that fails calls
Discard and leaves no trace. Backend read errors are sticky: Get returns the
zero slot and Commit reports the first error.
*/
type Buffer struct {
	backend Backend
	clean   map[Key]Slot
	dirty   map[Key]Slot
	err     error
	closed  bool
	stats   Stats
}

func NewBuffer(b Backend) *Buffer {
	return &Buffer{
		backend: b,
		clean:   make(map[Key]Slot),
		dirty:   make(map[Key]Slot),
	}
}

func (b *Buffer) Get(k Key) Slot {
	b.stats.Reads++
	if v, ok := b.dirty[k]; ok {
		return v
	}
	if v, ok := b.clean[k]; ok {
		return v
	}
	b.stats.BackendReads++
	v, err := b.backend.Load(k)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return Slot{}
	}
	b.clean[k] = v
	return v
}

func (b *Buffer) Set(k Key, v Slot) {
	b.stats.Writes++
	b.dirty[k] = v
}

func (b *Buffer) Err() error   { return b.err }
func (b *Buffer) Stats() Stats { return b.stats }

// Pending returns the number of distinct keys waiting to be written.
func (b *Buffer) Pending() int { return len(b.dirty) }

// Writes returns a copy of the pending write set.
func (b *Buffer) Writes() map[Key]Slot {
	out := make(map[Key]Slot, len(b.dirty))
	for k, v := range b.dirty {
		out[k] = v
	}
	return out
}

func (b *Buffer) Commit() error {
	if b.closed {
		return ErrBufferClosed
	}
	if b.err != nil {
		return b.err
	}
	b.closed = true
	if len(b.dirty) == 0 {
		return nil
	}
	return b.backend.Apply(b.dirty)
}

func (b *Buffer) Discard() {
	b.closed = true
	b.dirty = make(map[Key]Slot)
}
