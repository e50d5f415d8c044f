package quantities

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, uint64(5), SaturatingAdd(2, 3))
	assert.Equal(t, MaxLots, SaturatingAdd(math.MaxUint64, 1))
	assert.Equal(t, uint64(0), SaturatingSub(2, 3))
	assert.Equal(t, uint64(1), SaturatingSub(3, 2))
	assert.Equal(t, MaxLots, SaturatingMul(math.MaxUint64, 2))
	assert.Equal(t, uint64(6), SaturatingMul(2, 3))

	_, ok := CheckedMul(math.MaxUint64, 2)
	assert.False(t, ok)
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, c     uint64
		floor, ceil uint64
	}{
		{10, 3, 4, 7, 8},
		{10, 4, 4, 10, 10},
		{0, 9, 7, 0, 0},
		{math.MaxUint64, 10_000, 10_000, math.MaxUint64, math.MaxUint64},
		{math.MaxUint64, 2, 1, MaxLots, MaxLots},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.floor, MulDivFloor(tt.a, tt.b, tt.c), "floor(%d*%d/%d)", tt.a, tt.b, tt.c)
		assert.Equal(t, tt.ceil, MulDivCeil(tt.a, tt.b, tt.c), "ceil(%d*%d/%d)", tt.a, tt.b, tt.c)
	}
	assert.Equal(t, uint64(3), DivCeil(7, 3))
	assert.Equal(t, uint64(2), DivCeil(6, 3))
}

func TestConverterClampsAtMaxima(t *testing.T) {
	c := Converter{
		BaseLotSize:   1_000,
		QuoteLotSize:  10,
		MaxBaseAtoms:  1_000_000,
		MaxQuoteAtoms: 5_000,
		BaseDecimals:  6,
		QuoteDecimals: 2,
	}

	require.Equal(t, BaseLots(1_000), c.BaseLotsFromAtoms(5_000_000))
	require.Equal(t, BaseLots(2), c.BaseLotsFromAtoms(2_999))
	require.Equal(t, QuoteLots(500), c.QuoteLotsFromAtoms(math.MaxUint64))

	require.Equal(t, BaseAtoms(1_000_000), c.BaseAtomsFromLots(BaseLots(math.MaxUint64)))
	require.Equal(t, QuoteAtoms(120), c.QuoteAtomsFromLots(12))

	assert.Equal(t, "0.25", c.FormatBase(250))
	assert.Equal(t, "1.2", c.FormatQuote(12))
}

func FuzzMulDivFloorNeverExceedsCeil(f *testing.F) {
	f.Add(uint64(1), uint64(2), uint64(3))
	f.Add(uint64(math.MaxUint64), uint64(math.MaxUint64), uint64(1))
	f.Fuzz(func(t *testing.T, a, b, c uint64) {
		if c == 0 {
			return
		}
		lo, hi := MulDivFloor(a, b, c), MulDivCeil(a, b, c)
		if lo > hi || hi-lo > 1 {
			t.Fatalf("floor=%d ceil=%d for %d*%d/%d", lo, hi, a, b, c)
		}
	})
}
