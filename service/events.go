package service

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

type EventType string

const (
	EventOrderPlaced   EventType = "order_placed"
	EventFill          EventType = "fill"
	EventEviction      EventType = "eviction"
	EventOrderReduced  EventType = "order_reduced"
	EventDeposit       EventType = "deposit"
	EventWithdraw      EventType = "withdraw"
	EventFeesCollected EventType = "fees_collected"
)

// Event is what the broadcaster publishes. One flat shape for every type;
// fields that do not apply are omitted.
type Event struct {
	ID    string    `json:"id"`
	Type  EventType `json:"type"`
	Seq   uint64    `json:"seq"`
	Block uint32    `json:"block"`
	Time  uint32    `json:"time"`

	Trader        common.Address  `json:"trader"`
	Maker         *common.Address `json:"maker,omitempty"`
	Side          string          `json:"side,omitempty"`
	OrderID       *state.OrderID  `json:"order_id,omitempty"`
	ClientOrderID uint64          `json:"client_order_id,omitempty"`
	BaseLots      uint64          `json:"base_lots,omitempty"`
	QuoteLots     uint64          `json:"quote_lots,omitempty"`
	Remaining     uint64          `json:"remaining,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

func placedEvent(trader common.Address, id state.OrderID, side state.Side, lots q.BaseLots, client uint64) Event {
	return Event{
		Type:          EventOrderPlaced,
		Trader:        trader,
		Side:          side.String(),
		OrderID:       &id,
		ClientOrderID: client,
		BaseLots:      uint64(lots),
	}
}

func evictionEvent(ev matching.Eviction) Event {
	id := ev.OrderID
	return Event{
		Type:      EventEviction,
		Trader:    ev.Trader,
		Side:      ev.Side.String(),
		OrderID:   &id,
		BaseLots:  uint64(ev.BaseLots),
		Remaining: uint64(ev.Remaining),
		Reason:    ev.Reason.String(),
	}
}

func placeEvents(taker common.Address, client uint64, res *matching.Result) []Event {
	var out []Event
	for _, ev := range res.Evictions {
		out = append(out, evictionEvent(ev))
	}
	for _, f := range res.Fills {
		id, maker := f.OrderID, f.Maker
		out = append(out, Event{
			Type:          EventFill,
			Trader:        taker,
			Maker:         &maker,
			Side:          res.Side.String(),
			OrderID:       &id,
			ClientOrderID: client,
			BaseLots:      uint64(f.BaseLots),
			QuoteLots:     uint64(f.QuoteLots),
			Remaining:     uint64(f.MakerRemaining),
		})
	}
	if res.Placed != nil {
		out = append(out, placedEvent(taker, *res.Placed, res.Side, res.PlacedBaseLots, client))
	}
	return out
}

func reduceEvents(trader common.Address, res *matching.ReduceResult) []Event {
	out := make([]Event, 0, len(res.Reductions))
	for _, r := range res.Reductions {
		id := r.OrderID
		out = append(out, Event{
			Type:      EventOrderReduced,
			Trader:    trader,
			Side:      r.Side.String(),
			OrderID:   &id,
			BaseLots:  uint64(r.Removed),
			Remaining: uint64(r.Remaining),
		})
	}
	return out
}

func balanceEvent(trader common.Address, withdraw bool, base q.BaseLots, quote q.QuoteLots) Event {
	t := EventDeposit
	if withdraw {
		t = EventWithdraw
	}
	return Event{Type: t, Trader: trader, BaseLots: uint64(base), QuoteLots: uint64(quote)}
}
