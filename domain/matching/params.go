package matching

import (
	"fmt"

	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

const bpsDenominator = 10_000

// MarketParams are fixed when a market is created.
type MarketParams struct {
	BaseLotsPerBaseUnit            q.BaseLotsPerBaseUnit         `yaml:"base_lots_per_base_unit"`
	TickSizeInQuoteLotsPerBaseUnit q.QuoteLotsPerBaseUnitPerTick `yaml:"tick_size_in_quote_lots_per_base_unit"`
	TakerFeeBps                    uint64                        `yaml:"taker_fee_bps"`

	BaseLotSize   q.BaseAtoms  `yaml:"base_lot_size"`
	QuoteLotSize  q.QuoteAtoms `yaml:"quote_lot_size"`
	BaseDecimals  int32        `yaml:"base_decimals"`
	QuoteDecimals int32        `yaml:"quote_decimals"`
	MaxBaseAtoms  q.BaseAtoms  `yaml:"max_base_atoms"`
	MaxQuoteAtoms q.QuoteAtoms `yaml:"max_quote_atoms"`
}

func (p MarketParams) Validate() error {
	switch {
	case p.BaseLotsPerBaseUnit == 0:
		return fmt.Errorf("%w: base lots per base unit is zero", ErrInvalidMarketParams)
	case p.TickSizeInQuoteLotsPerBaseUnit == 0:
		return fmt.Errorf("%w: tick size is zero", ErrInvalidMarketParams)
	case uint64(p.TickSizeInQuoteLotsPerBaseUnit)%uint64(p.BaseLotsPerBaseUnit) != 0:
		return fmt.Errorf("%w: tick size %d is not a multiple of base lots per base unit %d",
			ErrInvalidMarketParams, p.TickSizeInQuoteLotsPerBaseUnit, p.BaseLotsPerBaseUnit)
	case p.TakerFeeBps >= bpsDenominator:
		return fmt.Errorf("%w: taker fee %d bps", ErrInvalidMarketParams, p.TakerFeeBps)
	case p.BaseLotSize == 0 || p.QuoteLotSize == 0:
		return fmt.Errorf("%w: lot size is zero", ErrInvalidMarketParams)
	}
	return nil
}

func (p MarketParams) Converter() q.Converter {
	return q.Converter{
		BaseLotSize:   p.BaseLotSize,
		QuoteLotSize:  p.QuoteLotSize,
		MaxBaseAtoms:  p.MaxBaseAtoms,
		MaxQuoteAtoms: p.MaxQuoteAtoms,
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	}
}

func (p MarketParams) quoteLotsPerBaseLotPerTick() uint64 {
	return uint64(p.TickSizeInQuoteLotsPerBaseUnit) / uint64(p.BaseLotsPerBaseUnit)
}

// QuoteLots prices base lots at a tick. ok is false on overflow.
func (p MarketParams) QuoteLots(base q.BaseLots, t state.Tick) (q.QuoteLots, bool) {
	perLot, ok := q.CheckedMul(uint64(t), p.quoteLotsPerBaseLotPerTick())
	if !ok {
		return 0, false
	}
	v, ok := q.CheckedMul(uint64(base), perLot)
	return q.QuoteLots(v), ok
}

// adjustedPerBaseLot is the adjusted quote lot price of one base lot.
func (p MarketParams) adjustedPerBaseLot(t state.Tick) q.AdjustedQuoteLots {
	return q.AdjustedQuoteLots(q.SaturatingMul(uint64(t), uint64(p.TickSizeInQuoteLotsPerBaseUnit)))
}
