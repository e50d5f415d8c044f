package exit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is one outbound event and its delivery state.
type ExitRecord struct {
	ID          uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(id uint64, b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.New("invalid exit record length")
	}
	return ExitRecord{
		ID:          id,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the event outbox. The service appends events after a command
// commits; the broadcaster publishes them and marks them acked.
type ExitWAL struct {
	db     *pebble.DB
	nextID uint64
}

func Open(dir string) (*ExitWAL, error) {
	return open(dir, &pebble.Options{})
}

// OpenMem opens an outbox on an in-memory filesystem.
func OpenMem() (*ExitWAL, error) {
	return open("outbox", &pebble.Options{FS: vfs.NewMem()})
}

func open(dir string, opts *pebble.Options) (*ExitWAL, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	w := &ExitWAL{db: db}
	last, err := w.lastID()
	if err != nil {
		db.Close()
		return nil, err
	}
	w.nextID = last + 1
	return w, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// Append stores payloads as NEW records in one synced batch and returns
// their ids. Callers serialise Append.
func (w *ExitWAL) Append(payloads ...[]byte) ([]uint64, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	b := w.db.NewBatch()
	defer b.Close()

	ids := make([]uint64, len(payloads))
	for i, p := range payloads {
		ids[i] = w.nextID + uint64(i)
		rec := ExitRecord{State: StateNew, Payload: p}
		if err := b.Set(keyFor(ids[i]), encodeRecord(rec), nil); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, err
	}
	w.nextID += uint64(len(payloads))
	return ids, nil
}

func (w *ExitWAL) MarkSent(id uint64) error {
	return w.update(id, func(r *ExitRecord) { r.State = StateSent })
}

func (w *ExitWAL) MarkAcked(id uint64) error {
	return w.update(id, func(r *ExitRecord) { r.State = StateAcked })
}

// MarkFailed records a failed attempt; the record is retried.
func (w *ExitWAL) MarkFailed(id uint64) error {
	return w.update(id, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
	})
}

func (w *ExitWAL) update(id uint64, fn func(*ExitRecord)) error {
	rec, err := w.Get(id)
	if err != nil {
		return err
	}
	fn(&rec)
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(id), encodeRecord(rec), pebble.Sync)
}

// Delete removes ACKED records (cleanup).
func (w *ExitWAL) Delete(id uint64) error {
	return w.db.Delete(keyFor(id), pebble.Sync)
}

// Get returns the current record for an event.
func (w *ExitWAL) Get(id uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(id))
	if err != nil {
		return ExitRecord{}, fmt.Errorf("exit wal: event %d: %w", id, err)
	}
	defer closer.Close()

	return decodeRecord(id, val)
}

// TruncateAckedUpTo deletes acked records with id <= upTo.
func (w *ExitWAL) TruncateAckedUpTo(upTo uint64) error {
	b := w.db.NewBatch()
	defer b.Close()

	err := w.scan(func(rec ExitRecord) error {
		if rec.ID > upTo {
			return errStopScan
		}
		if rec.State == StateAcked {
			return b.Delete(keyFor(rec.ID), nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// -------------------- Scan --------------------

var errStopScan = errors.New("stop scan")

// ScanPending visits every record not yet acked, oldest first. SENT records
// are included: a crash between send and ack resends them.
// This is used by the Broadcaster.
func (w *ExitWAL) ScanPending(fn func(*ExitRecord) error) error {
	return w.scan(func(rec ExitRecord) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(&rec)
	})
}

// ScanByState iterates all records in the given state.
func (w *ExitWAL) ScanByState(state ExitState, fn func(*ExitRecord) error) error {
	return w.scan(func(rec ExitRecord) error {
		if rec.State != state {
			return nil
		}
		return fn(&rec)
	})
}

func (w *ExitWAL) scan(fn func(ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(id, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

func (w *ExitWAL) lastID() (uint64, error) {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "event/"
	keyUpper  = "event0"
)

func keyFor(id uint64) []byte {
	b := make([]byte, len(keyPrefix)+8)
	copy(b, keyPrefix)
	binary.BigEndian.PutUint64(b[len(keyPrefix):], id)
	return b
}

func parseKey(b []byte) (uint64, error) {
	if len(b) != len(keyPrefix)+8 {
		return 0, fmt.Errorf("exit wal: bad key %q", b)
	}
	return binary.BigEndian.Uint64(b[len(keyPrefix):]), nil
}
