package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/logging"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/sequence"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/storage"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
	exitwal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/exit"
	"github.com/goblin-trade/goblin-core-v1-sub000/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

var (
	maker = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	taker = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

var testParams = matching.MarketParams{
	BaseLotsPerBaseUnit:            1,
	TickSizeInQuoteLotsPerBaseUnit: 1,
	TakerFeeBps:                    100,
	BaseLotSize:                    1,
	QuoteLotSize:                   1,
}

type env struct {
	t       *testing.T
	walDir  string
	backend storage.Backend
	entry   *entrywal.WAL
	exit    *exitwal.ExitWAL
	svc     *OrderService
}

func newEnv(t *testing.T, backend storage.Backend, walDir string) *env {
	t.Helper()
	entry, err := entrywal.Open(entrywal.Config{Dir: walDir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	exit, err := exitwal.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() {
		entry.Close()
		exit.Close()
	})

	now := time.Unix(1_700_000_000, 0)
	clock := sequence.NewClock(sequence.New(0), func() time.Time { return now })
	svc, err := NewOrderService(testParams, backend, clock, entry, exit, logging.Nop())
	require.NoError(t, err)
	_, err = svc.ReplayFromWAL(walDir)
	require.NoError(t, err)
	return &env{t: t, walDir: walDir, backend: backend, entry: entry, exit: exit, svc: svc}
}

// trade puts the book into a known state: one fill and one resting ask.
func (e *env) trade() {
	_, err := e.svc.Deposit(taker, 0, 1_000)
	require.NoError(e.t, err)
	_, err = e.svc.PlaceOrder(maker, matching.OrderPacket{Side: state.Ask, Type: matching.Limit, Price: 100, NumBaseLots: 5})
	require.NoError(e.t, err)
	_, err = e.svc.PlaceOrder(taker, matching.OrderPacket{Side: state.Bid, Type: matching.Limit, Price: 100, NumBaseLots: 2, UseOnlyDepositedFunds: true})
	require.NoError(e.t, err)
}

func (e *env) events() []Event {
	var out []Event
	require.NoError(e.t, e.exit.ScanPending(func(r *exitwal.ExitRecord) error {
		var ev Event
		if err := sonnet.Unmarshal(r.Payload, &ev); err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	}))
	return out
}

func dump(t *testing.T, b storage.Iterable) map[state.Key]state.Slot {
	out := map[state.Key]state.Slot{}
	require.NoError(t, b.Iterate(func(k state.Key, s state.Slot) error {
		out[k] = s
		return nil
	}))
	return out
}

func TestCommandsAndQueries(t *testing.T) {
	e := newEnv(t, storage.NewMemStore(), t.TempDir())
	e.trade()

	m, err := e.svc.Market()
	require.NoError(t, err)
	assert.Equal(t, state.Tick(100), m.BestAskPrice)
	assert.EqualValues(t, 2, m.UnclaimedQuoteLotFees)

	tr, err := e.svc.Trader(taker)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tr.BaseLotsFree)
	assert.EqualValues(t, 1_000-200-2, tr.QuoteLotsFree)

	o, side, ok, err := e.svc.Order(state.OrderID{Price: 100, Index: 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.Ask, side)
	assert.EqualValues(t, 3, o.NumBaseLots)

	depth, err := e.svc.Depth(state.Ask, 10)
	require.NoError(t, err)
	require.Len(t, depth, 1)
	assert.EqualValues(t, 3, depth[0].BaseLots)

	orders, err := e.svc.Orders(state.Ask, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, maker, orders[0].Order.Trader)

	seq, err := e.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	var types []EventType
	for _, ev := range e.events() {
		types = append(types, ev.Type)
		assert.NotEmpty(t, ev.ID)
	}
	assert.Equal(t, []EventType{EventDeposit, EventOrderPlaced, EventFill}, types)

	fees, err := e.svc.CollectFees()
	require.NoError(t, err)
	assert.EqualValues(t, 2, fees)
}

func TestRejectedCommandLeavesNoTrace(t *testing.T) {
	e := newEnv(t, storage.NewMemStore(), t.TempDir())
	e.trade()
	before := dump(t, e.backend)

	_, err := e.svc.Withdraw(maker, 1, 0)
	require.ErrorIs(t, err, matching.ErrInsufficientFunds)
	_, err = e.svc.PlaceOrder(maker, matching.OrderPacket{Side: state.Bid, Type: matching.PostOnly, Price: 100, NumBaseLots: 1, RejectPostOnly: true})
	require.ErrorIs(t, err, matching.ErrPostOnlyCross)

	assert.Equal(t, before, dump(t, e.backend))
	seq, err := e.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	_, err = e.svc.CancelAll(maker)
	require.NoError(t, err)
	seq, err = e.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq, "no gap after rejections")
}

func TestReplayRebuildsMemoryState(t *testing.T) {
	dir := t.TempDir()
	first := newEnv(t, storage.NewMemStore(), dir)
	first.trade()
	_, err := first.svc.ReduceOrders(maker, []matching.ReduceRequest{{OrderID: state.OrderID{Price: 100}, Lots: 1}})
	require.NoError(t, err)
	want := dump(t, first.backend)
	require.NoError(t, first.entry.Close())

	second := newEnv(t, storage.NewMemStore(), dir)
	assert.Equal(t, want, dump(t, second.backend))

	_, err = second.svc.CollectFees()
	require.NoError(t, err)
	seq, err := second.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seq, "sequencing resumes after the log")
}

func TestSnapshotThenReplayTail(t *testing.T) {
	dir := t.TempDir()
	snaps := &snapshot.Writer{Dir: filepath.Join(t.TempDir(), "snaps")}

	first := newEnv(t, storage.NewMemStore(), dir)
	first.trade()
	info, err := first.svc.Snapshot(snaps)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Seq)

	_, err = first.svc.PlaceMultiplePostOnly(maker, []matching.PostOnlyRequest{
		{Side: state.Ask, Price: 120, NumBaseLots: 1},
		{Side: state.Bid, Price: 80, NumBaseLots: 1},
	}, matching.MultipleOptions{})
	require.NoError(t, err)
	want := dump(t, first.backend)
	require.NoError(t, first.entry.Close())

	restored := storage.NewMemStore()
	latest, err := snapshot.Latest(snaps.Dir)
	require.NoError(t, err)
	_, err = snapshot.Load(latest, restored.Apply)
	require.NoError(t, err)

	second := newEnv(t, restored, dir)
	assert.Equal(t, want, dump(t, second.backend))
}

func TestDurableBackendReplaysNothing(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.OpenPebbleMem()
	require.NoError(t, err)
	defer db.Close()

	first := newEnv(t, db, dir)
	first.trade()
	require.NoError(t, first.entry.Close())

	second := newEnv(t, db, dir)
	seq, err := second.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
	_, err = second.svc.Deposit(maker, 1, 1)
	require.NoError(t, err)
	seq, err = second.svc.AppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
}

type failingBackend struct {
	*storage.MemStore
	fail bool
}

func (f *failingBackend) Apply(w map[state.Key]state.Slot) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemStore.Apply(w)
}

func TestCommitFailureStopsService(t *testing.T) {
	b := &failingBackend{MemStore: storage.NewMemStore()}
	e := newEnv(t, b, t.TempDir())
	_, err := e.svc.Deposit(maker, 1, 1)
	require.NoError(t, err)

	b.fail = true
	_, err = e.svc.Deposit(maker, 1, 1)
	require.ErrorIs(t, err, ErrUnavailable)

	b.fail = false
	_, err = e.svc.Deposit(maker, 1, 1)
	require.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, e.entry.Close())
	restarted := newEnv(t, b, e.walDir)
	tr, err := restarted.svc.Trader(maker)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tr.BaseLotsFree, "the logged deposit is replayed")
}

type failingOutbox struct {
	*exitwal.ExitWAL
	fail bool
}

func (f *failingOutbox) Append(payloads ...[]byte) ([]uint64, error) {
	if f.fail {
		return nil, errors.New("outbox closed")
	}
	return f.ExitWAL.Append(payloads...)
}

func TestOutboxFailureIsReportedByHealth(t *testing.T) {
	e := newEnv(t, storage.NewMemStore(), t.TempDir())
	out := &failingOutbox{ExitWAL: e.exit, fail: true}
	now := time.Unix(1_700_000_000, 0)
	clock := sequence.NewClock(sequence.New(0), func() time.Time { return now })
	svc, err := NewOrderService(testParams, e.backend, clock, e.entry, out, logging.Nop())
	require.NoError(t, err)

	_, err = svc.Deposit(maker, 3, 0)
	require.NoError(t, err, "the command stands without its events")
	tr, err := svc.Trader(maker)
	require.NoError(t, err)
	assert.EqualValues(t, 3, tr.BaseLotsFree)

	h, err := svc.Health()
	require.NoError(t, err)
	assert.True(t, h.OK())
	assert.Equal(t, Health{AppliedSeq: 1, DroppedEvents: 1}, h)
	assert.Empty(t, e.events())

	out.fail = false
	_, err = svc.Deposit(maker, 1, 0)
	require.NoError(t, err)
	h, err = svc.Health()
	require.NoError(t, err)
	assert.Equal(t, Health{AppliedSeq: 2, DroppedEvents: 1}, h)
	assert.Len(t, e.events(), 1)
}

func TestHealthReportsBrokenService(t *testing.T) {
	b := &failingBackend{MemStore: storage.NewMemStore()}
	e := newEnv(t, b, t.TempDir())
	_, err := e.svc.Deposit(maker, 1, 1)
	require.NoError(t, err)

	b.fail = true
	_, err = e.svc.Deposit(maker, 1, 1)
	require.ErrorIs(t, err, ErrUnavailable)

	b.fail = false
	h, err := e.svc.Health()
	require.NoError(t, err)
	assert.False(t, h.OK())
	assert.Contains(t, h.Broken, "commit seq 2")
	assert.EqualValues(t, 1, h.AppliedSeq)
}
