package state

// MapStore is an unbuffered in-memory Store and Backend.
type MapStore map[Key]Slot

func (m MapStore) Get(k Key) Slot    { return m[k] }
func (m MapStore) Set(k Key, v Slot) { m[k] = v }

func (m MapStore) Load(k Key) (Slot, error) { return m[k], nil }

func (m MapStore) Apply(w map[Key]Slot) error {
	for k, v := range w {
		m[k] = v
	}
	return nil
}
