package entry

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Frame:
// [type:1][seq:8][block:4][time:4][len:4][payload][crc:4]
const headerSize = 1 + 8 + 4 + 4 + 4

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// Sync fsyncs every append.
	Sync bool
}

type WAL struct {
	mu sync.Mutex

	dir        string
	segSize    int64
	segDur     time.Duration
	fsync      bool
	current    *segment
	lastRotate time.Time
}

// Open appends to the newest existing segment, or starts segment 0.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if n := len(files); n > 0 {
		if index, err = segmentIndex(files[n-1]); err != nil {
			return nil, err
		}
		if err := dropTornTail(files[n-1]); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		fsync:      cfg.Sync,
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

func encodeRecord(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint32(buf[9:13], r.Block)
	binary.BigEndian.PutUint32(buf[13:17], r.Time)
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)
	return buf
}

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.append(encodeRecord(r)); err != nil {
		return err
	}
	if w.fsync {
		if err := w.current.sync(); err != nil {
			return err
		}
	}

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records are all at or below
// seq. The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	current := filepath.Base(segmentPath(w.dir, w.current.index))
	for _, path := range files {
		if filepath.Base(path) == current {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}

// dropTornTail cuts a partly written last record so new appends follow the
// last complete one.
func dropTornTail(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var valid int64
	for {
		rec, err := readRecord(f)
		if err != nil {
			break
		}
		valid += int64(headerSize + len(rec.Data) + 4)
	}
	st, err := f.Stat()
	f.Close()
	if err != nil {
		return err
	}
	if st.Size() == valid {
		return nil
	}
	return os.Truncate(path, valid)
}
