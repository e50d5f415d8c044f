// Package servicetest builds an in-memory OrderService for adapter tests.
package servicetest

import (
	"testing"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/logging"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/sequence"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/storage"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
	exitwal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/exit"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
	"github.com/stretchr/testify/require"
)

// Params has 6 base and 2 quote decimals, so 1000 base lots render as
// "1" and 100 quote lots as "10".
var Params = matching.MarketParams{
	BaseLotsPerBaseUnit:            1,
	TickSizeInQuoteLotsPerBaseUnit: 1,
	BaseLotSize:                    1000,
	QuoteLotSize:                   10,
	BaseDecimals:                   6,
	QuoteDecimals:                  2,
}

type Env struct {
	Svc  *service.OrderService
	Exit *exitwal.ExitWAL
}

// New returns a service over a MemStore, a temp entry WAL and an in-memory
// outbox, all closed at test cleanup. The clock is frozen.
func New(t testing.TB, params matching.MarketParams) *Env {
	t.Helper()
	entry, err := entrywal.Open(entrywal.Config{Dir: t.TempDir(), SegmentSize: 1 << 20})
	require.NoError(t, err)
	exit, err := exitwal.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() {
		entry.Close()
		exit.Close()
	})

	now := time.Unix(1_700_000_000, 0)
	clock := sequence.NewClock(sequence.New(0), func() time.Time { return now })
	svc, err := service.NewOrderService(params, storage.NewMemStore(), clock, entry, exit, logging.Nop())
	require.NoError(t, err)
	return &Env{Svc: svc, Exit: exit}
}
