package snapshot

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/zeebo/blake3"
)

type Writer struct {
	Dir string
	// Keep is how many snapshots survive a write. Zero keeps all.
	Keep int
}

type entry struct {
	key  state.Key
	slot state.Slot
}

// Write dumps src as of seq. The caller must keep src unchanged until Write
// returns.
func (w *Writer) Write(seq uint64, src Source) (Info, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Info{}, err
	}

	var entries []entry
	err := src.Iterate(func(k state.Key, s state.Slot) error {
		entries = append(entries, entry{key: k, slot: s})
		return nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: read source: %w", err)
	}

	path := filepath.Join(w.Dir, fileName(seq))
	tmp := path + ".tmp"
	if err := writeFile(tmp, seq, entries); err != nil {
		_ = os.Remove(tmp)
		return Info{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return Info{}, err
	}
	if err := w.prune(); err != nil {
		return Info{}, err
	}
	return Info{Path: path, Seq: seq, Count: uint64(len(entries))}, nil
}

func writeFile(path string, seq uint64, entries []entry) error {
	size := headerSize + len(entries)*entrySize + footerSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("snapshot: size file: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("snapshot: mmap: %w", err)
	}

	copy(m[0:4], magic)
	m[4] = version
	binary.BigEndian.PutUint64(m[8:16], seq)
	binary.BigEndian.PutUint64(m[16:24], uint64(len(entries)))
	off := headerSize
	for _, e := range entries {
		copy(m[off:off+32], e.key[:])
		copy(m[off+32:off+64], e.slot[:])
		off += entrySize
	}
	sum := blake3.Sum256(m[:off])
	copy(m[off:], sum[:])

	if err := m.Flush(); err != nil {
		_ = m.Unmap()
		return err
	}
	if err := m.Unmap(); err != nil {
		return err
	}
	return f.Sync()
}

func (w *Writer) prune() error {
	if w.Keep <= 0 {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(w.Dir, filePattern))
	if err != nil {
		return err
	}
	if len(files) <= w.Keep {
		return nil
	}
	// Glob sorts, and zero-padded names sort by seq.
	for _, path := range files[:len(files)-w.Keep] {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
