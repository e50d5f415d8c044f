package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// slot keys live under their own prefix so the db can hold other records.
var slotPrefix = []byte("s/")

// PebbleStore is the default durable backend. Apply is one synced batch.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*PebbleStore, error) {
	return openPebble(dir, &pebble.Options{})
}

// OpenPebbleMem opens a store on an in-memory filesystem.
func OpenPebbleMem() (*PebbleStore, error) {
	return openPebble("db", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func slotKey(k state.Key) []byte {
	b := make([]byte, 0, len(slotPrefix)+len(k))
	b = append(b, slotPrefix...)
	return append(b, k[:]...)
}

func (p *PebbleStore) Load(k state.Key) (state.Slot, error) {
	var s state.Slot
	val, closer, err := p.db.Get(slotKey(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	defer closer.Close()
	if len(val) != len(s) {
		return s, fmt.Errorf("storage: slot %s has %d bytes", k, len(val))
	}
	copy(s[:], val)
	return s, nil
}

func (p *PebbleStore) Apply(w map[state.Key]state.Slot) error {
	b := p.db.NewBatch()
	defer b.Close()
	for k, v := range w {
		var err error
		if v.IsZero() {
			err = b.Delete(slotKey(k), nil)
		} else {
			err = b.Set(slotKey(k), v[:], nil)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleStore) Iterate(fn func(state.Key, state.Slot) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: slotPrefix,
		UpperBound: []byte("s0"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var k state.Key
		var s state.Slot
		copy(k[:], iter.Key()[len(slotPrefix):])
		copy(s[:], iter.Value())
		if err := fn(k, s); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
