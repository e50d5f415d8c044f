package state

// Chain is the host's view of time.
type Chain interface {
	BlockNumber() uint32
	Timestamp() uint32
}

// ExpiryCache reads each clock value from the chain at most once per request.
type ExpiryCache struct {
	chain     Chain
	block     uint32
	timestamp uint32
	haveBlock bool
	haveTime  bool
}

func NewExpiryCache(c Chain) *ExpiryCache {
	return &ExpiryCache{chain: c}
}

func (c *ExpiryCache) BlockNumber() uint32 {
	if !c.haveBlock {
		c.block = c.chain.BlockNumber()
		c.haveBlock = true
	}
	return c.block
}

func (c *ExpiryCache) Timestamp() uint32 {
	if !c.haveTime {
		c.timestamp = c.chain.Timestamp()
		c.haveTime = true
	}
	return c.timestamp
}

// IsExpired only touches the clock the expiry tracks.
func (c *ExpiryCache) IsExpired(e Expiry) bool {
	if e.LastValid == 0 {
		return false
	}
	if e.TrackBlock {
		return c.BlockNumber() > e.LastValid
	}
	return c.Timestamp() > e.LastValid
}

// FixedChain is a Chain with constant values, used for replay and tests.
type FixedChain struct {
	Block uint32
	Time  uint32
}

func (f FixedChain) BlockNumber() uint32 { return f.Block }
func (f FixedChain) Timestamp() uint32   { return f.Time }
