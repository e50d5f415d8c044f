package sequence

import (
	"sync/atomic"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// Sequencer generates strictly monotonic sequence IDs.
// Each committed command takes one; it doubles as the block number the
// command runs in.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer starting from a given value.
// On fresh start → start = 0
// On replay → start = last replayed seq
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next global sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value.
// This is ONLY used after WAL replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}

// ---------------- Clock ----------------

// Clock stamps commands with a block number and a unix timestamp.
type Clock struct {
	seq *Sequencer
	now func() time.Time
}

func NewClock(seq *Sequencer, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{seq: seq, now: now}
}

// Stamp is the clock one command runs under.
type Stamp struct {
	Seq   uint64
	Block uint32
	Time  uint32
}

func (s Stamp) Chain() state.FixedChain {
	return state.FixedChain{Block: s.Block, Time: s.Time}
}

// Peek returns the stamp the next command would get without consuming it.
// Rejected commands use it so they do not leave gaps in the sequence.
func (c *Clock) Peek() Stamp {
	return c.stamp(c.seq.Current() + 1)
}

// Advance consumes the stamp returned by the matching Peek.
func (c *Clock) Advance(s Stamp) {
	c.seq.Reset(s.Seq)
}

func (c *Clock) stamp(seq uint64) Stamp {
	ts := c.now().Unix()
	if ts < 0 {
		ts = 0
	}
	return Stamp{Seq: seq, Block: uint32(seq), Time: uint32(ts)}
}
