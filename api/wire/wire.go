// Package wire holds the JSON shapes shared by the gRPC and HTTP adapters
// and their conversion to and from domain types.
package wire

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/orderbook"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
)

// ErrBadRequest marks input rejected before it reaches the service.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// -------------------- Primitives --------------------

type OrderID struct {
	Price uint64 `json:"price"`
	Index uint8  `json:"index"`
}

func (o OrderID) Domain() (state.OrderID, error) {
	if o.Price > uint64(state.MaxTick) {
		return state.OrderID{}, badRequest("price %d above max tick", o.Price)
	}
	if int(o.Index) >= state.SlotsPerTick {
		return state.OrderID{}, badRequest("resting index %d out of range", o.Index)
	}
	return state.OrderID{Price: state.Tick(o.Price), Index: state.RestingOrderIndex(o.Index)}, nil
}

func FromOrderID(id state.OrderID) OrderID {
	return OrderID{Price: uint64(id.Price), Index: uint8(id.Index)}
}

type Expiry struct {
	TrackBlock bool   `json:"track_block"`
	LastValid  uint32 `json:"last_valid"`
}

func (e *Expiry) domain() state.Expiry {
	if e == nil {
		return state.Expiry{}
	}
	return state.Expiry{TrackBlock: e.TrackBlock, LastValid: e.LastValid}
}

// Amount is a lot count with its token value rendered as a decimal string.
type Amount struct {
	Lots  uint64 `json:"lots"`
	Value string `json:"value"`
}

func Base(c q.Converter, l q.BaseLots) Amount {
	return Amount{Lots: uint64(l), Value: c.FormatBase(l)}
}

func Quote(c q.Converter, l q.QuoteLots) Amount {
	return Amount{Lots: uint64(l), Value: c.FormatQuote(l)}
}

func ParseSide(s string) (state.Side, error) {
	switch s {
	case "bid", "buy":
		return state.Bid, nil
	case "ask", "sell":
		return state.Ask, nil
	}
	return 0, badRequest("unknown side %q", s)
}

func parseType(s string) (matching.OrderType, error) {
	switch s {
	case "", "limit":
		return matching.Limit, nil
	case "post_only":
		return matching.PostOnly, nil
	case "ioc":
		return matching.ImmediateOrCancel, nil
	}
	return 0, badRequest("unknown order type %q", s)
}

func parseSelfTrade(s string) (matching.SelfTradeBehavior, error) {
	switch s {
	case "", "abort":
		return matching.Abort, nil
	case "cancel_provide":
		return matching.CancelProvide, nil
	case "decrement_take":
		return matching.DecrementTake, nil
	}
	return 0, badRequest("unknown self trade behavior %q", s)
}

func ParseTrader(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest("invalid trader address %q", s)
	}
	return common.HexToAddress(s), nil
}

// -------------------- Commands --------------------

type PlaceOrderRequest struct {
	Trader                string  `json:"trader"`
	Side                  string  `json:"side"`
	Type                  string  `json:"type"`
	Price                 uint64  `json:"price"`
	BaseLots              uint64  `json:"base_lots"`
	QuoteLots             uint64  `json:"quote_lots"`
	MinBaseLots           uint64  `json:"min_base_lots"`
	MinQuoteLots          uint64  `json:"min_quote_lots"`
	SelfTrade             string  `json:"self_trade"`
	MatchLimit            uint64  `json:"match_limit"`
	RejectPostOnly        bool    `json:"reject_post_only"`
	MaxTickOffset         uint32  `json:"max_tick_offset"`
	UseOnlyDepositedFunds bool    `json:"use_only_deposited_funds"`
	Expiry                *Expiry `json:"expiry,omitempty"`
	ClientOrderID         uint64  `json:"client_order_id"`
}

func (r *PlaceOrderRequest) Decode() (common.Address, matching.OrderPacket, error) {
	var p matching.OrderPacket
	trader, err := ParseTrader(r.Trader)
	if err != nil {
		return trader, p, err
	}
	if p.Side, err = ParseSide(r.Side); err != nil {
		return trader, p, err
	}
	if p.Type, err = parseType(r.Type); err != nil {
		return trader, p, err
	}
	if p.SelfTrade, err = parseSelfTrade(r.SelfTrade); err != nil {
		return trader, p, err
	}
	p.Price = r.Price
	p.NumBaseLots = q.BaseLots(r.BaseLots)
	p.NumQuoteLots = q.QuoteLots(r.QuoteLots)
	p.MinBaseLotsToFill = q.BaseLots(r.MinBaseLots)
	p.MinQuoteLotsToFill = q.QuoteLots(r.MinQuoteLots)
	p.MatchLimit = r.MatchLimit
	p.RejectPostOnly = r.RejectPostOnly
	p.MaxTickOffset = r.MaxTickOffset
	p.UseOnlyDepositedFunds = r.UseOnlyDepositedFunds
	p.Expiry = r.Expiry.domain()
	p.ClientOrderID = r.ClientOrderID
	return trader, p, nil
}

type ReduceEntry struct {
	OrderID
	Lots            uint64 `json:"lots"`
	RevertOnFailure bool   `json:"revert_on_failure"`
}

type ReduceOrdersRequest struct {
	Trader string        `json:"trader"`
	Orders []ReduceEntry `json:"orders"`
}

func (r *ReduceOrdersRequest) Decode() (common.Address, []matching.ReduceRequest, error) {
	trader, err := ParseTrader(r.Trader)
	if err != nil {
		return trader, nil, err
	}
	out := make([]matching.ReduceRequest, 0, len(r.Orders))
	for _, o := range r.Orders {
		id, err := o.OrderID.Domain()
		if err != nil {
			return trader, nil, err
		}
		out = append(out, matching.ReduceRequest{
			OrderID:         id,
			Lots:            q.BaseLots(o.Lots),
			RevertOnFailure: o.RevertOnFailure,
		})
	}
	return trader, out, nil
}

type PostOnlyEntry struct {
	Side          string `json:"side"`
	Price         uint64 `json:"price"`
	BaseLots      uint64 `json:"base_lots"`
	ClientOrderID uint64 `json:"client_order_id"`
}

type PlaceMultipleRequest struct {
	Trader                string          `json:"trader"`
	Orders                []PostOnlyEntry `json:"orders"`
	RejectCross           bool            `json:"reject_cross"`
	UseOnlyDepositedFunds bool            `json:"use_only_deposited_funds"`
	Expiry                *Expiry         `json:"expiry,omitempty"`
}

func (r *PlaceMultipleRequest) Decode() (common.Address, []matching.PostOnlyRequest, matching.MultipleOptions, error) {
	opts := matching.MultipleOptions{
		RejectCross:           r.RejectCross,
		UseOnlyDepositedFunds: r.UseOnlyDepositedFunds,
		Expiry:                r.Expiry.domain(),
	}
	trader, err := ParseTrader(r.Trader)
	if err != nil {
		return trader, nil, opts, err
	}
	out := make([]matching.PostOnlyRequest, 0, len(r.Orders))
	for _, o := range r.Orders {
		side, err := ParseSide(o.Side)
		if err != nil {
			return trader, nil, opts, err
		}
		out = append(out, matching.PostOnlyRequest{
			Side:          side,
			Price:         o.Price,
			NumBaseLots:   q.BaseLots(o.BaseLots),
			ClientOrderID: o.ClientOrderID,
		})
	}
	return trader, out, opts, nil
}

// BalanceRequest is a deposit or a withdrawal.
type BalanceRequest struct {
	Trader    string `json:"trader"`
	BaseLots  uint64 `json:"base_lots"`
	QuoteLots uint64 `json:"quote_lots"`
}

type TraderRequest struct {
	Trader string `json:"trader"`
}

// -------------------- Responses --------------------

type FillView struct {
	Maker          string  `json:"maker"`
	OrderID        OrderID `json:"order_id"`
	Base           Amount  `json:"base"`
	Quote          Amount  `json:"quote"`
	MakerRemaining uint64  `json:"maker_remaining"`
}

type EvictionView struct {
	Trader    string  `json:"trader"`
	OrderID   OrderID `json:"order_id"`
	Side      string  `json:"side"`
	BaseLots  uint64  `json:"base_lots"`
	Remaining uint64  `json:"remaining"`
	Reason    string  `json:"reason"`
}

type TransfersView struct {
	BaseIn   Amount `json:"base_in"`
	QuoteIn  Amount `json:"quote_in"`
	BaseOut  Amount `json:"base_out"`
	QuoteOut Amount `json:"quote_out"`
}

func transfers(c q.Converter, t matching.Transfers) TransfersView {
	return TransfersView{
		BaseIn:   Base(c, t.BaseLotsIn),
		QuoteIn:  Quote(c, t.QuoteLotsIn),
		BaseOut:  Base(c, t.BaseLotsOut),
		QuoteOut: Quote(c, t.QuoteLotsOut),
	}
}

type PlaceOrderResponse struct {
	Side      string         `json:"side"`
	Type      string         `json:"type"`
	Expired   bool           `json:"expired"`
	Placed    *OrderID       `json:"placed,omitempty"`
	Posted    Amount         `json:"posted"`
	Matched   Amount         `json:"matched"`
	Cost      Amount         `json:"cost"`
	Fee       Amount         `json:"fee"`
	Fills     []FillView     `json:"fills"`
	Evictions []EvictionView `json:"evictions"`
	Transfers TransfersView  `json:"transfers"`
}

func NewPlaceOrderResponse(c q.Converter, r *matching.Result) PlaceOrderResponse {
	out := PlaceOrderResponse{
		Side:      r.Side.String(),
		Type:      r.Type.String(),
		Expired:   r.Expired,
		Posted:    Base(c, r.PlacedBaseLots),
		Matched:   Base(c, r.MatchedBaseLots),
		Cost:      Quote(c, r.MatchedQuoteLots),
		Fee:       Quote(c, r.FeeQuoteLots),
		Fills:     make([]FillView, 0, len(r.Fills)),
		Transfers: transfers(c, r.Transfers),
	}
	if r.Placed != nil {
		id := FromOrderID(*r.Placed)
		out.Placed = &id
	}
	for _, f := range r.Fills {
		out.Fills = append(out.Fills, FillView{
			Maker:          f.Maker.Hex(),
			OrderID:        FromOrderID(f.OrderID),
			Base:           Base(c, f.BaseLots),
			Quote:          Quote(c, f.QuoteLots),
			MakerRemaining: uint64(f.MakerRemaining),
		})
	}
	out.Evictions = evictionViews(r.Evictions)
	return out
}

func evictionViews(evs []matching.Eviction) []EvictionView {
	out := make([]EvictionView, 0, len(evs))
	for _, e := range evs {
		out = append(out, EvictionView{
			Trader:    e.Trader.Hex(),
			OrderID:   FromOrderID(e.OrderID),
			Side:      e.Side.String(),
			BaseLots:  uint64(e.BaseLots),
			Remaining: uint64(e.Remaining),
			Reason:    e.Reason.String(),
		})
	}
	return out
}

type ReductionView struct {
	OrderID   OrderID `json:"order_id"`
	Side      string  `json:"side"`
	Removed   uint64  `json:"removed"`
	Remaining uint64  `json:"remaining"`
}

type ReduceResponse struct {
	Reductions    []ReductionView `json:"reductions"`
	Skipped       []OrderID       `json:"skipped"`
	BaseReleased  Amount          `json:"base_released"`
	QuoteReleased Amount          `json:"quote_released"`
}

func NewReduceResponse(c q.Converter, r *matching.ReduceResult) ReduceResponse {
	out := ReduceResponse{
		Reductions:    make([]ReductionView, 0, len(r.Reductions)),
		Skipped:       make([]OrderID, 0, len(r.Skipped)),
		BaseReleased:  Base(c, r.BaseLotsReleased),
		QuoteReleased: Quote(c, r.QuoteLotsReleased),
	}
	for _, x := range r.Reductions {
		out.Reductions = append(out.Reductions, ReductionView{
			OrderID:   FromOrderID(x.OrderID),
			Side:      x.Side.String(),
			Removed:   uint64(x.Removed),
			Remaining: uint64(x.Remaining),
		})
	}
	for _, id := range r.Skipped {
		out.Skipped = append(out.Skipped, FromOrderID(id))
	}
	return out
}

type PlacementView struct {
	OrderID       OrderID `json:"order_id"`
	Side          string  `json:"side"`
	BaseLots      uint64  `json:"base_lots"`
	ClientOrderID uint64  `json:"client_order_id"`
}

type PlaceMultipleResponse struct {
	Placed    []PlacementView `json:"placed"`
	Skipped   []PostOnlyEntry `json:"skipped"`
	Evictions []EvictionView  `json:"evictions"`
	Transfers TransfersView   `json:"transfers"`
}

func NewPlaceMultipleResponse(c q.Converter, r *matching.MultipleResult) PlaceMultipleResponse {
	out := PlaceMultipleResponse{
		Placed:    make([]PlacementView, 0, len(r.Placed)),
		Skipped:   make([]PostOnlyEntry, 0, len(r.Skipped)),
		Evictions: evictionViews(r.Evictions),
		Transfers: transfers(c, r.Transfers),
	}
	for _, p := range r.Placed {
		out.Placed = append(out.Placed, PlacementView{
			OrderID:       FromOrderID(p.OrderID),
			Side:          p.Side.String(),
			BaseLots:      uint64(p.BaseLots),
			ClientOrderID: p.ClientOrderID,
		})
	}
	for _, s := range r.Skipped {
		out.Skipped = append(out.Skipped, PostOnlyEntry{
			Side:          s.Side.String(),
			Price:         s.Price,
			BaseLots:      uint64(s.NumBaseLots),
			ClientOrderID: s.ClientOrderID,
		})
	}
	return out
}

type TraderView struct {
	Trader      string `json:"trader"`
	BaseFree    Amount `json:"base_free"`
	BaseLocked  Amount `json:"base_locked"`
	QuoteFree   Amount `json:"quote_free"`
	QuoteLocked Amount `json:"quote_locked"`
}

func NewTraderView(c q.Converter, addr common.Address, t state.TraderState) TraderView {
	return TraderView{
		Trader:      addr.Hex(),
		BaseFree:    Base(c, t.BaseLotsFree),
		BaseLocked:  Base(c, t.BaseLotsLocked),
		QuoteFree:   Quote(c, t.QuoteLotsFree),
		QuoteLocked: Quote(c, t.QuoteLotsLocked),
	}
}

// MarketView reports best prices as null for an empty side.
type MarketView struct {
	BestBid       *uint64 `json:"best_bid"`
	BestAsk       *uint64 `json:"best_ask"`
	CollectedFees Amount  `json:"collected_fees"`
	UnclaimedFees Amount  `json:"unclaimed_fees"`
	AppliedSeq    uint64  `json:"applied_seq"`
}

func NewMarketView(c q.Converter, m state.MarketState, seq uint64) MarketView {
	out := MarketView{
		CollectedFees: Quote(c, m.CollectedQuoteLotFees),
		UnclaimedFees: Quote(c, m.UnclaimedQuoteLotFees),
		AppliedSeq:    seq,
	}
	if !m.IsEmpty(state.Bid) {
		v := uint64(m.BestBidPrice)
		out.BestBid = &v
	}
	if !m.IsEmpty(state.Ask) {
		v := uint64(m.BestAskPrice)
		out.BestAsk = &v
	}
	return out
}

type OrderView struct {
	OrderID OrderID `json:"order_id"`
	Side    string  `json:"side"`
	Trader  string  `json:"trader"`
	Base    Amount  `json:"base"`
	Expiry  *Expiry `json:"expiry,omitempty"`
}

func NewOrderView(c q.Converter, id state.OrderID, side state.Side, o state.RestingOrder) OrderView {
	out := OrderView{
		OrderID: FromOrderID(id),
		Side:    side.String(),
		Trader:  o.Trader.Hex(),
		Base:    Base(c, o.NumBaseLots),
	}
	if o.Expiry.IsSet() {
		out.Expiry = &Expiry{TrackBlock: o.Expiry.TrackBlock, LastValid: o.Expiry.LastValid}
	}
	return out
}

type LevelView struct {
	Price  uint64 `json:"price"`
	Base   Amount `json:"base"`
	Orders int    `json:"orders"`
}

type DepthView struct {
	Bids []LevelView `json:"bids"`
	Asks []LevelView `json:"asks"`
}

func NewDepthView(c q.Converter, bids, asks []orderbook.Level) DepthView {
	conv := func(ls []orderbook.Level) []LevelView {
		out := make([]LevelView, 0, len(ls))
		for _, l := range ls {
			out = append(out, LevelView{Price: uint64(l.Price), Base: Base(c, q.BaseLots(l.BaseLots)), Orders: l.OrderCount})
		}
		return out
	}
	return DepthView{Bids: conv(bids), Asks: conv(asks)}
}

// Orders renders an L3 listing.
func Orders(c q.Converter, side state.Side, rs []service.RestingOrder) []OrderView {
	out := make([]OrderView, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewOrderView(c, r.ID, side, r.Order))
	}
	return out
}

type FeesView struct {
	Collected Amount `json:"collected"`
}
