package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

type ReplayHandler func(*Record) error

var ErrCorrupt = errors.New("entry wal: corrupt record")

/*
Replay feeds every record after `after` to fn, in sequence order.

A record cut short at the end of the newest segment is a write that never
completed and ends the replay. Anywhere else it is corruption.
*/
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}
	lastSeq = after

	for i, path := range files {
		last := i == len(files)-1
		if err := replaySegment(path, last, &lastSeq, after, fn); err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, lastSeq *uint64, after uint64, fn ReplayHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var prev uint64
	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) && last {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if rec.Seq <= prev {
			return fmt.Errorf("%w: non-monotonic seq %d after %d", ErrCorrupt, rec.Seq, prev)
		}
		prev = rec.Seq
		if rec.Seq <= after {
			continue
		}
		if rec.Seq <= *lastSeq {
			return fmt.Errorf("%w: non-monotonic seq %d after %d", ErrCorrupt, rec.Seq, *lastSeq)
		}
		*lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	if !CRC32Valid(append(header, payload...), crc) {
		return nil, fmt.Errorf("%w: crc mismatch", ErrCorrupt)
	}

	return &Record{
		Type:  RecordType(header[0]),
		Seq:   binary.BigEndian.Uint64(header[1:9]),
		Block: binary.BigEndian.Uint32(header[9:13]),
		Time:  binary.BigEndian.Uint32(header[13:17]),
		Data:  payload,
	}, nil
}
