// Package fixedpoint translates between decimal prices/sizes at external
// boundaries (REST/WS payloads, user-facing structs) and the fixed-point
// integer representation the book engine compares and sums on its hot path.
//
// PriceTick and SizeFixed are deliberately dumb integer types: every
// comparison, addition, and subtraction on the apply path operates on them
// directly, never on decimal.Decimal. Quantize/dequantize is a boundary
// crossing, not a steady-state operation. Decimal arithmetic is not confined
// to this package: the execution simulator, the sizer and the API layer
// compute notional, fee and average-price figures in decimal.Decimal.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceTick is a non-negative integer price, in units of an instrument's
// tick size.
type PriceTick uint32

// SizeFixed is a signed fixed-decimal quantity. Signed so that deltas can be
// expressed; a stored ladder level is always > 0.
type SizeFixed int64

// TickDomain describes the price/size quantization for one instrument,
// obtained out-of-band (e.g. from a Gamma-style market descriptor) before
// the first apply for that instrument.
type TickDomain struct {
	TickSize  decimal.Decimal // quote-currency value of one PriceTick, e.g. 0.01
	SizeScale int64           // power-of-ten multiplier for size, e.g. 1_000_000
	MinTick   PriceTick
	MaxTick   PriceTick
}

// errors returned by QuantizePrice/QuantizeSize. Checked with errors.Is.
var (
	// ErrTickMisalignment means the decimal price is not an exact multiple
	// of the instrument's tick size.
	ErrTickMisalignment = errors.New("fixedpoint: price not aligned to tick size")
	// ErrOutOfDomain means a (correctly aligned) tick falls outside
	// [MinTick, MaxTick].
	ErrOutOfDomain = errors.New("fixedpoint: tick outside instrument domain")
	// ErrScaleOverflow means a quantized size does not fit in int64.
	ErrScaleOverflow = errors.New("fixedpoint: size does not fit in 64 bits")
	// ErrNegativeSize means a decimal size was negative where only
	// non-negative ladder sizes are accepted.
	ErrNegativeSize = errors.New("fixedpoint: size is negative")
)

// QuantizePrice converts a decimal price into a PriceTick. It succeeds only
// when price / tickSize is an exact non-negative integer within the
// instrument's declared tick domain. There is no rounding: a misaligned
// price is a validation failure, not a warning.
func QuantizePrice(price decimal.Decimal, dom TickDomain) (PriceTick, error) {
	if dom.TickSize.Sign() <= 0 {
		return 0, fmt.Errorf("fixedpoint: tick size must be positive, got %s", dom.TickSize)
	}
	if price.Sign() < 0 {
		return 0, fmt.Errorf("%w: price %s", ErrOutOfDomain, price)
	}

	ratio := price.Div(dom.TickSize)
	ticks := ratio.Round(0)
	if !ticks.Equal(ratio) {
		return 0, fmt.Errorf("%w: %s is not a multiple of %s", ErrTickMisalignment, price, dom.TickSize)
	}
	if !ticks.IsInteger() || !ticks.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrTickMisalignment, price)
	}

	tick64 := ticks.BigInt().Uint64()
	if tick64 > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: tick %d overflows 32 bits", ErrOutOfDomain, tick64)
	}
	tick := PriceTick(tick64)
	if tick < dom.MinTick || tick > dom.MaxTick {
		return 0, fmt.Errorf("%w: tick %d not in [%d, %d]", ErrOutOfDomain, tick, dom.MinTick, dom.MaxTick)
	}
	return tick, nil
}

// QuantizeSize converts a decimal size into a SizeFixed. The result must fit
// in a signed 64-bit integer; negative sizes are rejected (callers that need
// to express a removal use size == 0, never a negative value).
func QuantizeSize(size decimal.Decimal, scale int64) (SizeFixed, error) {
	if size.Sign() < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNegativeSize, size)
	}
	scaled := size.Mul(decimal.NewFromInt(scale))
	rounded := scaled.Round(0)
	if !rounded.Equal(scaled) {
		// Fractional amounts smaller than the scale's resolution are a
		// misalignment of the same kind as a mis-ticked price.
		return 0, fmt.Errorf("%w: %s at scale %d leaves a fractional remainder", ErrScaleOverflow, size, scale)
	}
	big := rounded.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("%w: %s at scale %d", ErrScaleOverflow, size, scale)
	}
	return SizeFixed(big.Int64()), nil
}

// DequantizePrice converts a PriceTick back to a decimal price. Used only at
// egress (API responses, user-facing structs).
func DequantizePrice(tick PriceTick, dom TickDomain) decimal.Decimal {
	return dom.TickSize.Mul(decimal.NewFromInt(int64(tick)))
}

// DequantizeSize converts a SizeFixed back to a decimal size.
func DequantizeSize(size SizeFixed, scale int64) decimal.Decimal {
	return decimal.NewFromInt(int64(size)).Div(decimal.NewFromInt(scale))
}
