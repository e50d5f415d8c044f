package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/zeebo/blake3"
)

// Load verifies the snapshot at path and feeds its slots to apply in key
// order. An empty path loads nothing and returns seq 0.
func Load(path string, apply func(map[state.Key]state.Slot) error) (Info, error) {
	if path == "" {
		return Info{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: mmap: %w", err)
	}
	defer m.Unmap()

	info, err := verify(m)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	info.Path = path

	const batch = 4096
	w := make(map[state.Key]state.Slot, batch)
	off := headerSize
	for i := uint64(0); i < info.Count; i++ {
		var k state.Key
		var s state.Slot
		copy(k[:], m[off:off+32])
		copy(s[:], m[off+32:off+64])
		w[k] = s
		off += entrySize
		if len(w) == batch {
			if err := apply(w); err != nil {
				return Info{}, err
			}
			w = make(map[state.Key]state.Slot, batch)
		}
	}
	if len(w) > 0 {
		if err := apply(w); err != nil {
			return Info{}, err
		}
	}
	return info, nil
}

func verify(m []byte) (Info, error) {
	if len(m) < headerSize+footerSize || !bytes.Equal(m[0:4], []byte(magic)) {
		return Info{}, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if m[4] != version {
		return Info{}, fmt.Errorf("%w: version %d", ErrCorrupt, m[4])
	}
	info := Info{
		Seq:   binary.BigEndian.Uint64(m[8:16]),
		Count: binary.BigEndian.Uint64(m[16:24]),
	}
	body := uint64(len(m) - headerSize - footerSize)
	if body%entrySize != 0 || body/entrySize != info.Count {
		return Info{}, fmt.Errorf("%w: %d entries do not fit %d bytes", ErrCorrupt, info.Count, len(m))
	}
	end := len(m) - footerSize
	sum := blake3.Sum256(m[:end])
	if !bytes.Equal(sum[:], m[end:]) {
		return Info{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return info, nil
}
