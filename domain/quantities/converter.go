package quantities

import "github.com/shopspring/decimal"

// Converter maps raw token atoms to lots and back for one market.
//
// Raw amounts above the declared maxima are clamped before conversion and
// lot amounts that would overflow the atom range are clamped after it.
type Converter struct {
	BaseLotSize   BaseAtoms
	QuoteLotSize  QuoteAtoms
	MaxBaseAtoms  BaseAtoms
	MaxQuoteAtoms QuoteAtoms
	BaseDecimals  int32
	QuoteDecimals int32
}

func (c Converter) BaseLotsFromAtoms(a BaseAtoms) BaseLots {
	if c.MaxBaseAtoms != 0 && a > c.MaxBaseAtoms {
		a = c.MaxBaseAtoms
	}
	return BaseLots(uint64(a) / uint64(c.BaseLotSize))
}

func (c Converter) QuoteLotsFromAtoms(a QuoteAtoms) QuoteLots {
	if c.MaxQuoteAtoms != 0 && a > c.MaxQuoteAtoms {
		a = c.MaxQuoteAtoms
	}
	return QuoteLots(uint64(a) / uint64(c.QuoteLotSize))
}

func (c Converter) BaseAtomsFromLots(l BaseLots) BaseAtoms {
	a := BaseAtoms(SaturatingMul(uint64(l), uint64(c.BaseLotSize)))
	if c.MaxBaseAtoms != 0 && a > c.MaxBaseAtoms {
		return c.MaxBaseAtoms
	}
	return a
}

func (c Converter) QuoteAtomsFromLots(l QuoteLots) QuoteAtoms {
	a := QuoteAtoms(SaturatingMul(uint64(l), uint64(c.QuoteLotSize)))
	if c.MaxQuoteAtoms != 0 && a > c.MaxQuoteAtoms {
		return c.MaxQuoteAtoms
	}
	return a
}

// FormatBase renders base lots as a decimal token amount, e.g. "1.25".
func (c Converter) FormatBase(l BaseLots) string {
	a := c.BaseAtomsFromLots(l)
	return decimal.NewFromUint64(uint64(a)).Shift(-c.BaseDecimals).String()
}

// FormatQuote renders quote lots as a decimal token amount.
func (c Converter) FormatQuote(l QuoteLots) string {
	a := c.QuoteAtomsFromLots(l)
	return decimal.NewFromUint64(uint64(a)).Shift(-c.QuoteDecimals).String()
}
