package broadcaster

import (
	"context"
	"fmt"
	"time"

	exitwal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/exit"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// Publisher delivers one event. Publish must not return before the event
// is durable on the other side, or it will be acked too early.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

const defaultInterval = 2 * time.Second

// Broadcaster drains the exit WAL into its publishers, oldest event first.
type Broadcaster struct {
	exitWAL  *exitwal.ExitWAL
	sinks    []Publisher
	interval time.Duration
	log      *zap.SugaredLogger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	exitWAL *exitwal.ExitWAL,
	interval time.Duration,
	log *zap.SugaredLogger,
	sinks ...Publisher,
) *Broadcaster {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Broadcaster{
		exitWAL:  exitWAL,
		sinks:    sinks,
		interval: interval,
		log:      log.Named("broadcaster"),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Infow("started", "sinks", len(b.sinks), "interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return

		case <-ticker.C:
			if _, err := b.ReplayOnce(ctx); err != nil {
				b.log.Warnw("publish pass stopped", "error", err)
			}
		}
	}
}

// ------------------------------------------------
// REPLAY LOGIC (CRITICAL)
// ------------------------------------------------

// ReplayOnce publishes pending events in order and returns how many were
// acked. It stops at the first failure so later events never overtake it.
func (b *Broadcaster) ReplayOnce(ctx context.Context) (int, error) {
	acked := 0
	err := b.exitWAL.ScanPending(func(rec *exitwal.ExitRecord) error {
		// 1️⃣ Mark SENT (idempotent)
		if err := b.exitWAL.MarkSent(rec.ID); err != nil {
			return err
		}

		// 2️⃣ Publish to every sink
		key := eventKey(rec.Payload)
		for _, s := range b.sinks {
			if err := s.Publish(ctx, key, rec.Payload); err != nil {
				if mErr := b.exitWAL.MarkFailed(rec.ID); mErr != nil {
					b.log.Errorw("mark failed", "id", rec.ID, "error", mErr)
				}
				return fmt.Errorf("event %d: %w", rec.ID, err)
			}
		}

		// 3️⃣ Mark ACKED
		if err := b.exitWAL.MarkAcked(rec.ID); err != nil {
			return err
		}
		acked++
		return nil
	})
	return acked, err
}

// eventKey partitions by trader so one trader's events stay ordered.
func eventKey(payload []byte) []byte {
	var head struct {
		Trader string `json:"trader"`
	}
	if err := sonnet.Unmarshal(payload, &head); err != nil {
		return nil
	}
	return []byte(head.Trader)
}
