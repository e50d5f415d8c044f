package service

import (
	"fmt"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/sequence"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
)

/*
ReplayFromWAL re-applies logged commands the backend has not seen yet: every
record after the backend's applied seq. A memory backend restored from a
snapshot replays the tail after it; a durable backend usually replays
nothing.

IMPORTANT:
- This MUST run before accepting traffic
- Exit WAL is NOT replayed; events of replayed commands are not re-sent
*/
func (s *OrderService) ReplayFromWAL(dir string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	probe := state.NewBuffer(s.backend)
	applied := readAppliedSeq(probe)
	if err := probe.Err(); err != nil {
		return 0, err
	}

	next := applied + 1
	n := 0
	last, err := entrywal.Replay(dir, applied, func(rec *entrywal.Record) error {
		if rec.Seq != next {
			return fmt.Errorf("replay: expected seq %d, log has %d", next, rec.Seq)
		}
		cmd, err := decodeCommand(rec)
		if err != nil {
			return err
		}
		stamp := sequence.Stamp{Seq: rec.Seq, Block: rec.Block, Time: rec.Time}
		buf := state.NewBuffer(s.backend)
		if _, err := s.run(cmd, buf, stamp); err != nil {
			buf.Discard()
			return fmt.Errorf("replay seq %d (%s): %w", rec.Seq, rec.Type, err)
		}
		if err := buf.Commit(); err != nil {
			return err
		}
		next++
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Resume sequencing AFTER replay
	s.clock.Advance(sequence.Stamp{Seq: last})
	s.log.Infow("WAL replay completed", "applied_before", applied, "replayed", n, "last_seq", last)
	return last, nil
}
