package service

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/memory"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/sequence"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/storage"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// ErrUnavailable is returned once the service has stopped taking commands.
var ErrUnavailable = errors.New("service unavailable")

/*
OrderService is the ONLY write entry point into the system.

Commands are serialised. Each one:
- runs on a fresh state.Buffer, so a failed command leaves no trace
- is appended to the entry WAL, stamped with its seq/block/time
- commits its buffer together with the applied-seq meta slot
- queues its events in the exit WAL for the broadcaster

The event feed is best effort: if queueing fails after the commit, the
command stands and its events are dropped. Health reports how many.

Queries read the backend directly and may run alongside each other.
*/
type OrderService struct {
	mu sync.RWMutex

	params   matching.MarketParams
	backend  storage.Backend
	clock    *sequence.Clock
	entryWAL *entrywal.WAL
	outbox   Outbox
	log      *zap.SugaredLogger
	bufs     *memory.Pool[bytes.Buffer]

	// broken is set when a logged command failed to commit. The backend no
	// longer matches the log, so every later command is refused until a
	// restart replays it.
	broken error

	// dropped counts events lost to outbox append failures.
	dropped atomic.Uint64
}

// Outbox queues encoded events for the broadcaster. exitwal.ExitWAL is the
// production implementation.
type Outbox interface {
	Append(payloads ...[]byte) ([]uint64, error)
	TruncateAckedUpTo(upTo uint64) error
}

// NewOrderService wires all dependencies.
// No globals. No magic.
func NewOrderService(
	params matching.MarketParams,
	backend storage.Backend,
	clock *sequence.Clock,
	entryWAL *entrywal.WAL,
	outbox Outbox,
	log *zap.SugaredLogger,
) (*OrderService, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &OrderService{
		params:   params,
		backend:  backend,
		clock:    clock,
		entryWAL: entryWAL,
		outbox:   outbox,
		log:      log.Named("service"),
		bufs:     memory.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset),
	}, nil
}

func (s *OrderService) Params() matching.MarketParams { return s.params }

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) PlaceOrder(trader common.Address, p matching.OrderPacket) (*matching.Result, error) {
	cmd := &PlaceCommand{Trader: trader, Order: p}
	if err := s.execute(cmd); err != nil {
		return nil, err
	}
	return cmd.result, nil
}

func (s *OrderService) ReduceOrders(trader common.Address, reqs []matching.ReduceRequest) (*matching.ReduceResult, error) {
	cmd := &ReduceCommand{Trader: trader, Requests: reqs}
	if err := s.execute(cmd); err != nil {
		return nil, err
	}
	return cmd.result, nil
}

func (s *OrderService) CancelAll(trader common.Address) (*matching.ReduceResult, error) {
	cmd := &CancelAllCommand{Trader: trader}
	if err := s.execute(cmd); err != nil {
		return nil, err
	}
	return cmd.result, nil
}

func (s *OrderService) PlaceMultiplePostOnly(
	trader common.Address,
	reqs []matching.PostOnlyRequest,
	opts matching.MultipleOptions,
) (*matching.MultipleResult, error) {
	cmd := &PlaceMultipleCommand{Trader: trader, Requests: reqs, Options: opts}
	if err := s.execute(cmd); err != nil {
		return nil, err
	}
	return cmd.result, nil
}

func (s *OrderService) Deposit(trader common.Address, base q.BaseLots, quote q.QuoteLots) (state.TraderState, error) {
	cmd := &BalanceCommand{Trader: trader, BaseLots: base, QuoteLots: quote}
	err := s.execute(cmd)
	return cmd.result, err
}

func (s *OrderService) Withdraw(trader common.Address, base q.BaseLots, quote q.QuoteLots) (state.TraderState, error) {
	cmd := &BalanceCommand{Trader: trader, Withdraw: true, BaseLots: base, QuoteLots: quote}
	err := s.execute(cmd)
	return cmd.result, err
}

func (s *OrderService) CollectFees() (q.QuoteLots, error) {
	cmd := &CollectFeesCommand{}
	err := s.execute(cmd)
	return cmd.result, err
}

func (s *OrderService) execute(cmd command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return s.broken
	}

	stamp := s.clock.Peek()
	buf := state.NewBuffer(s.backend)
	events, err := s.run(cmd, buf, stamp)
	if err != nil {
		buf.Discard()
		s.log.Debugw("command rejected", "type", cmd.recordType(), "seq", stamp.Seq, "error", err)
		return err
	}

	payload, err := s.encode(cmd)
	if err != nil {
		buf.Discard()
		return err
	}
	rec := entrywal.NewRecord(cmd.recordType(), stamp.Seq, stamp.Block, stamp.Time, payload)
	if err := s.entryWAL.Append(rec); err != nil {
		buf.Discard()
		return fmt.Errorf("entry wal: %w", err)
	}

	// From here the command is logged. A failed commit is recovered by
	// replaying the log after the applied seq on restart.
	if err := buf.Commit(); err != nil {
		s.clock.Advance(stamp)
		s.broken = fmt.Errorf("%w: commit seq %d: %v", ErrUnavailable, stamp.Seq, err)
		s.log.Errorw("commit failed after wal append", "seq", stamp.Seq, "error", err)
		return s.broken
	}
	s.clock.Advance(stamp)

	if err := s.publish(stamp, events); err != nil {
		total := s.dropped.Add(uint64(len(events)))
		s.log.Errorw("outbox append failed, events dropped",
			"seq", stamp.Seq, "events", len(events), "dropped_total", total, "error", err)
	}
	return nil
}

// run applies cmd on buf under stamp and records stamp as the applied seq.
func (s *OrderService) run(cmd command, buf *state.Buffer, stamp sequence.Stamp) ([]Event, error) {
	e := matching.New(s.params, buf, stamp.Chain())
	events, err := cmd.apply(e)
	if err != nil {
		return nil, err
	}
	if err := buf.Err(); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	writeAppliedSeq(buf, stamp.Seq)
	return events, nil
}

func (s *OrderService) publish(stamp sequence.Stamp, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([][]byte, len(events))
	for i := range events {
		ev := &events[i]
		ev.ID = uuid.NewString()
		ev.Seq, ev.Block, ev.Time = stamp.Seq, stamp.Block, stamp.Time
		b, err := s.encode(ev)
		if err != nil {
			return err
		}
		payloads[i] = b
	}
	_, err := s.outbox.Append(payloads...)
	return err
}

func (s *OrderService) encode(v any) ([]byte, error) {
	buf := s.bufs.Get()
	defer s.bufs.Put(buf)
	if err := sonnet.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// ---------------- Applied seq ----------------

var appliedSeqKey = state.MetaKey("applied_seq")

func writeAppliedSeq(st state.Store, seq uint64) {
	var v state.Slot
	binary.BigEndian.PutUint64(v[24:], seq)
	st.Set(appliedSeqKey, v)
}

func readAppliedSeq(st state.Store) uint64 {
	v := st.Get(appliedSeqKey)
	return binary.BigEndian.Uint64(v[24:])
}

// AppliedSeq is the seq of the last command committed to the backend.
func (s *OrderService) AppliedSeq() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := state.NewBuffer(s.backend)
	seq := readAppliedSeq(buf)
	return seq, buf.Err()
}

// Health is the service's write-path status.
type Health struct {
	AppliedSeq uint64 `json:"applied_seq"`
	// Broken holds the reason commands are refused, empty while healthy.
	Broken string `json:"broken,omitempty"`
	// DroppedEvents counts events committed but never queued for publishing.
	DroppedEvents uint64 `json:"dropped_events"`
}

func (h Health) OK() bool { return h.Broken == "" }

func (s *OrderService) Health() (Health, error) {
	s.mu.RLock()
	broken := s.broken
	s.mu.RUnlock()

	seq, err := s.AppliedSeq()
	if err != nil {
		return Health{}, err
	}
	h := Health{AppliedSeq: seq, DroppedEvents: s.dropped.Load()}
	if broken != nil {
		h.Broken = broken.Error()
	}
	return h, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// view runs fn over a read-only buffer. Nothing is committed.
func (s *OrderService) view(fn func(st state.Store, m *state.MarketState)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := state.NewBuffer(s.backend)
	m := state.LoadMarketState(buf)
	fn(buf, &m)
	return buf.Err()
}

func (s *OrderService) Market() (state.MarketState, error) {
	var out state.MarketState
	err := s.view(func(_ state.Store, m *state.MarketState) { out = *m })
	return out, err
}

func (s *OrderService) Trader(addr common.Address) (state.TraderState, error) {
	var out state.TraderState
	err := s.view(func(st state.Store, _ *state.MarketState) { out = state.LoadTraderState(st, addr) })
	return out, err
}

// Order returns a live resting order. ok is false if no order rests at id.
func (s *OrderService) Order(id state.OrderID) (o state.RestingOrder, side state.Side, ok bool, err error) {
	err = s.view(func(st state.Store, m *state.MarketState) {
		side, o, ok = orderbook.Lookup(st, m, id)
	})
	return o, side, ok, err
}

func (s *OrderService) Depth(side state.Side, levels int) ([]orderbook.Level, error) {
	var out []orderbook.Level
	err := s.view(func(st state.Store, m *state.MarketState) { out = orderbook.Depth(st, m, side, levels) })
	return out, err
}

// RestingOrder is one entry of an L3 listing.
type RestingOrder struct {
	ID    state.OrderID
	Order state.RestingOrder
}

// Orders lists up to limit resting orders of a side, best first. limit <= 0
// lists all.
func (s *OrderService) Orders(side state.Side, limit int) ([]RestingOrder, error) {
	var out []RestingOrder
	err := s.view(func(st state.Store, m *state.MarketState) {
		orderbook.Walk(st, m, side, func(id state.OrderID, o state.RestingOrder) bool {
			out = append(out, RestingOrder{ID: id, Order: o})
			return limit <= 0 || len(out) < limit
		})
	})
	return out, err
}
