package storage

import (
	"bytes"
	"sync"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/google/btree"
)

type memItem struct {
	key  state.Key
	slot state.Slot
}

func lessItem(a, b memItem) bool { return bytes.Compare(a.key[:], b.key[:]) < 0 }

// MemStore keeps slots in an ordered in-memory tree. It backs tests and
// deployments that rebuild state from a snapshot plus the command log.
type MemStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memItem]
}

func NewMemStore() *MemStore {
	return &MemStore{tree: btree.NewG(32, lessItem)}
}

func (m *MemStore) Load(k state.Key) (state.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, _ := m.tree.Get(memItem{key: k})
	return it.slot, nil
}

func (m *MemStore) Apply(w map[state.Key]state.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range w {
		if v.IsZero() {
			m.tree.Delete(memItem{key: k})
			continue
		}
		m.tree.ReplaceOrInsert(memItem{key: k, slot: v})
	}
	return nil
}

func (m *MemStore) Iterate(fn func(state.Key, state.Slot) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var err error
	m.tree.Ascend(func(it memItem) bool {
		err = fn(it.key, it.slot)
		return err == nil
	})
	return err
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Reset drops every slot. Used before loading a snapshot.
func (m *MemStore) Reset() {
	m.mu.Lock()
	m.tree.Clear(false)
	m.mu.Unlock()
}

func (m *MemStore) Close() error { return nil }
