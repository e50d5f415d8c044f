package snapshot

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// Layout:
// [magic:4][version:1][pad:3][seq:8][count:8] then count * [key:32][slot:32]
// then [blake3:32] over everything before it.
const (
	magic       = "GBSN"
	version     = 1
	headerSize  = 24
	entrySize   = 64
	footerSize  = 32
	filePattern = "snapshot-*.snap"
)

var ErrCorrupt = errors.New("snapshot: corrupt file")

// Source is anything that can list its slots, in practice a storage backend.
type Source interface {
	Iterate(fn func(state.Key, state.Slot) error) error
}

type Info struct {
	Path  string
	Seq   uint64
	Count uint64
}

func fileName(seq uint64) string {
	return fmt.Sprintf("snapshot-%020d.snap", seq)
}

// Latest returns the path of the newest snapshot in dir, or "" if none.
func Latest(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Strings(files)
	return files[len(files)-1], nil
}
