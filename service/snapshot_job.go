package service

import (
	"context"
	"math"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/snapshot"
)

// Snapshot writes the backend as of the last applied command, then drops
// entry WAL segments it covers and acked outbox records.
func (s *OrderService) Snapshot(w *snapshot.Writer) (snapshot.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := state.NewBuffer(s.backend)
	seq := readAppliedSeq(buf)
	if err := buf.Err(); err != nil {
		return snapshot.Info{}, err
	}

	info, err := w.Write(seq, s.backend)
	if err != nil {
		return snapshot.Info{}, err
	}

	// Truncate ENTRY WAL after snapshot
	if err := s.entryWAL.TruncateBefore(seq); err != nil {
		return info, err
	}
	// GC EXIT WAL (acked only)
	return info, s.outbox.TruncateAckedUpTo(math.MaxUint64)
}

func (s *OrderService) StartSnapshotJob(ctx context.Context, w *snapshot.Writer, interval time.Duration) {
	log := s.log.Named("snapshot")
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				info, err := s.Snapshot(w)
				if err != nil {
					log.Errorw("snapshot failed", "error", err)
					continue
				}
				log.Infow("snapshot written", "seq", info.Seq, "slots", info.Count, "path", info.Path)
			}
		}
	}()
}
