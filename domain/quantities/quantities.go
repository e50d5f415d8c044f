// Package quantities holds the fixed-point units used by the book.
//
// Lots are the internal unit; atoms are the raw token unit seen outside the
// engine. Arithmetic on lots saturates instead of wrapping.
package quantities

import "math/bits"

type (
	BaseLots  uint64
	QuoteLots uint64

	// AdjustedQuoteLots are quote lots multiplied by base lots per base unit.
	// Matching runs in this unit so that per-fill prices never round.
	AdjustedQuoteLots uint64

	BaseAtoms  uint64
	QuoteAtoms uint64

	BaseLotsPerBaseUnit         uint64
	QuoteLotsPerBaseUnitPerTick uint64
)

const MaxLots = ^uint64(0)

// SaturatingAdd returns a+b, clamped at the uint64 maximum.
func SaturatingAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return MaxLots
	}
	return s
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// SaturatingMul returns a*b, clamped at the uint64 maximum.
func SaturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return MaxLots
	}
	return lo
}

// CheckedMul returns a*b and whether it fit in 64 bits.
func CheckedMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// MulDivFloor computes floor(a*b/c) with a 128-bit intermediate, saturating
// when the quotient does not fit. c must be non-zero.
func MulDivFloor(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return MaxLots
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// MulDivCeil computes ceil(a*b/c), saturating like MulDivFloor.
func MulDivCeil(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return MaxLots
	}
	q, r := bits.Div64(hi, lo, c)
	if r != 0 {
		if q == MaxLots {
			return MaxLots
		}
		q++
	}
	return q
}

// DivCeil computes ceil(a/b). b must be non-zero.
func DivCeil(a, b uint64) uint64 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
