package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
	"github.com/sugawarayuuta/sonnet"
)

// command is one logged request. apply runs it on an engine and returns the
// events it produced; the service stamps them.
type command interface {
	recordType() entrywal.RecordType
	apply(e *matching.Engine) ([]Event, error)
}

type PlaceCommand struct {
	Trader common.Address       `json:"trader"`
	Order  matching.OrderPacket `json:"order"`

	result *matching.Result
}

func (c *PlaceCommand) recordType() entrywal.RecordType { return entrywal.RecordPlace }

func (c *PlaceCommand) apply(e *matching.Engine) ([]Event, error) {
	res, err := e.PlaceOrder(c.Trader, c.Order)
	if err != nil {
		return nil, err
	}
	c.result = res
	return placeEvents(c.Trader, c.Order.ClientOrderID, res), nil
}

type ReduceCommand struct {
	Trader   common.Address           `json:"trader"`
	Requests []matching.ReduceRequest `json:"requests"`

	result *matching.ReduceResult
}

func (c *ReduceCommand) recordType() entrywal.RecordType { return entrywal.RecordReduce }

func (c *ReduceCommand) apply(e *matching.Engine) ([]Event, error) {
	res, err := e.ReduceOrders(c.Trader, c.Requests)
	if err != nil {
		return nil, err
	}
	c.result = res
	return reduceEvents(c.Trader, res), nil
}

type CancelAllCommand struct {
	Trader common.Address `json:"trader"`

	result *matching.ReduceResult
}

func (c *CancelAllCommand) recordType() entrywal.RecordType { return entrywal.RecordCancelAll }

func (c *CancelAllCommand) apply(e *matching.Engine) ([]Event, error) {
	res, err := e.CancelAll(c.Trader)
	if err != nil {
		return nil, err
	}
	c.result = res
	return reduceEvents(c.Trader, res), nil
}

type PlaceMultipleCommand struct {
	Trader   common.Address             `json:"trader"`
	Requests []matching.PostOnlyRequest `json:"requests"`
	Options  matching.MultipleOptions   `json:"options"`

	result *matching.MultipleResult
}

func (c *PlaceMultipleCommand) recordType() entrywal.RecordType {
	return entrywal.RecordPlaceMultiple
}

func (c *PlaceMultipleCommand) apply(e *matching.Engine) ([]Event, error) {
	res, err := e.PlaceMultiplePostOnly(c.Trader, c.Requests, c.Options)
	if err != nil {
		return nil, err
	}
	c.result = res
	var out []Event
	for _, ev := range res.Evictions {
		out = append(out, evictionEvent(ev))
	}
	for _, p := range res.Placed {
		out = append(out, placedEvent(c.Trader, p.OrderID, p.Side, p.BaseLots, p.ClientOrderID))
	}
	return out, nil
}

// BalanceCommand is a deposit or a withdrawal of free funds.
type BalanceCommand struct {
	Trader    common.Address `json:"trader"`
	Withdraw  bool           `json:"withdraw"`
	BaseLots  q.BaseLots     `json:"base_lots"`
	QuoteLots q.QuoteLots    `json:"quote_lots"`

	result state.TraderState
}

func (c *BalanceCommand) recordType() entrywal.RecordType {
	if c.Withdraw {
		return entrywal.RecordWithdraw
	}
	return entrywal.RecordDeposit
}

func (c *BalanceCommand) apply(e *matching.Engine) ([]Event, error) {
	if c.Withdraw {
		t, err := e.Withdraw(c.Trader, c.BaseLots, c.QuoteLots)
		if err != nil {
			return nil, err
		}
		c.result = t
	} else {
		c.result = e.Deposit(c.Trader, c.BaseLots, c.QuoteLots)
	}
	return []Event{balanceEvent(c.Trader, c.Withdraw, c.BaseLots, c.QuoteLots)}, nil
}

type CollectFeesCommand struct {
	result q.QuoteLots
}

func (c *CollectFeesCommand) recordType() entrywal.RecordType { return entrywal.RecordCollectFees }

func (c *CollectFeesCommand) apply(e *matching.Engine) ([]Event, error) {
	c.result = e.CollectFees()
	return []Event{{Type: EventFeesCollected, QuoteLots: uint64(c.result)}}, nil
}

// decodeCommand rebuilds a logged command for replay.
func decodeCommand(rec *entrywal.Record) (command, error) {
	var cmd command
	switch rec.Type {
	case entrywal.RecordPlace:
		cmd = &PlaceCommand{}
	case entrywal.RecordReduce:
		cmd = &ReduceCommand{}
	case entrywal.RecordCancelAll:
		cmd = &CancelAllCommand{}
	case entrywal.RecordPlaceMultiple:
		cmd = &PlaceMultipleCommand{}
	case entrywal.RecordDeposit, entrywal.RecordWithdraw:
		cmd = &BalanceCommand{}
	case entrywal.RecordCollectFees:
		cmd = &CollectFeesCommand{}
	default:
		return nil, fmt.Errorf("unknown record type %d at seq %d", rec.Type, rec.Seq)
	}
	if err := sonnet.Unmarshal(rec.Data, cmd); err != nil {
		return nil, fmt.Errorf("decode %s at seq %d: %w", rec.Type, rec.Seq, err)
	}
	return cmd, nil
}
