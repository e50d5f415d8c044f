package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestActiveInnerIndex(t *testing.T) {
	var g BitmapGroup
	_, ok := g.BestActiveInnerIndex(Ask, nil)
	assert.False(t, ok)

	g.Set(GroupPosition{Inner: 4, Resting: 2})
	g.Set(GroupPosition{Inner: 20})

	i, ok := g.BestActiveInnerIndex(Ask, nil)
	require.True(t, ok)
	assert.Equal(t, InnerIndex(4), i)

	i, ok = g.BestActiveInnerIndex(Bid, nil)
	require.True(t, ok)
	assert.Equal(t, InnerIndex(20), i)

	start := InnerIndex(5)
	i, ok = g.BestActiveInnerIndex(Ask, &start)
	require.True(t, ok)
	assert.Equal(t, InnerIndex(20), i)

	i, ok = g.BestActiveInnerIndex(Bid, &start)
	require.True(t, ok)
	assert.Equal(t, InnerIndex(4), i)

	start = 3
	_, ok = g.BestActiveInnerIndex(Bid, &start)
	assert.False(t, ok)
}

func TestNextActiveFollowsBitOrder(t *testing.T) {
	var g BitmapGroup
	g.Set(GroupPosition{Inner: 2, Resting: 5})
	g.Set(GroupPosition{Inner: 2, Resting: 1})
	g.Set(GroupPosition{Inner: 9, Resting: 0})

	var asks []GroupPosition
	for bit := 0; ; {
		p, ok := g.NextActive(Ask, bit)
		if !ok {
			break
		}
		asks = append(asks, p)
		bit = p.BitIndex(Ask) + 1
	}
	assert.Equal(t, []GroupPosition{{2, 1}, {2, 5}, {9, 0}}, asks)

	var bids []GroupPosition
	for bit := 0; ; {
		p, ok := g.NextActive(Bid, bit)
		if !ok {
			break
		}
		bids = append(bids, p)
		bit = p.BitIndex(Bid) + 1
	}
	assert.Equal(t, []GroupPosition{{9, 0}, {2, 1}, {2, 5}}, bids)
}

func TestFreeSlot(t *testing.T) {
	var g BitmapGroup
	r, ok := g.FreeSlot(7)
	require.True(t, ok)
	assert.Equal(t, RestingOrderIndex(0), r)

	g[7] = 0b0000_1011
	r, ok = g.FreeSlot(7)
	require.True(t, ok)
	assert.Equal(t, RestingOrderIndex(2), r)

	g[7] = 0xff
	_, ok = g.FreeSlot(7)
	assert.False(t, ok)
}

func TestClearTicks(t *testing.T) {
	var g BitmapGroup
	for i := range g {
		g[i] = 1
	}
	outer := OuterIndex(3) // ticks 96..127
	assert.True(t, g.ClearTicks(outer, 90, 99))
	assert.Equal(t, byte(0), g[3])
	assert.Equal(t, byte(1), g[4])
	assert.False(t, g.ClearTicks(outer, 96, 99), "already clear")
	assert.False(t, g.ClearTicks(outer, 200, 300))
	assert.True(t, g.ClearTicks(outer, 120, MaxTick))
	assert.Equal(t, byte(0), g[31])
}

type failingBackend struct{ MapStore }

func (failingBackend) Load(Key) (Slot, error) { return Slot{}, errors.New("disk gone") }

func TestBufferDefersWrites(t *testing.T) {
	backend := MapStore{}
	buf := NewBuffer(backend)

	k := BitmapKey(1)
	buf.Set(k, Slot{1})
	assert.Equal(t, Slot{1}, buf.Get(k))
	assert.Empty(t, backend)

	require.NoError(t, buf.Commit())
	assert.Equal(t, Slot{1}, backend[k])
	assert.ErrorIs(t, buf.Commit(), ErrBufferClosed)
}

func TestBufferDiscard(t *testing.T) {
	backend := MapStore{}
	buf := NewBuffer(backend)
	buf.Set(MarketKey(), Slot{9})
	buf.Discard()
	assert.Empty(t, backend)
}

func TestBufferCachesReadsAndKeepsErrors(t *testing.T) {
	backend := MapStore{BitmapKey(2): Slot{7}}
	buf := NewBuffer(backend)
	buf.Get(BitmapKey(2))
	buf.Get(BitmapKey(2))
	assert.Equal(t, Stats{Reads: 2, BackendReads: 1}, buf.Stats())

	bad := NewBuffer(failingBackend{MapStore{}})
	assert.Equal(t, Slot{}, bad.Get(MarketKey()))
	assert.EqualError(t, bad.Commit(), "disk gone")
}
