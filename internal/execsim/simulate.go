// Package execsim implements the walk-the-book execution simulator (spec
// §4.D): given a Book and a trade intent, it computes the fill profile
// across the opposite side of the ladder without mutating anything.
//
// Grounded in the VWAP/price-impact walk of phenomenon0's orderbook package
// (VolumeWeightedPrice, PriceImpact, SimulateMarketOrder), generalized to
// fixed-point ticks/sizes and a 128-bit-class notional accumulator so a deep
// walk across many levels cannot overflow.
package execsim

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/pkg/fixedpoint"
)

// TradeSide is the direction of the intent being simulated, as distinct
// from book.Side (which identifies a resting ladder). A Buy consumes the
// ask ladder; a Sell consumes the bid ladder.
type TradeSide uint8

const (
	Buy TradeSide = iota
	Sell
)

func (s TradeSide) opposite() book.Side {
	if s == Buy {
		return book.Ask
	}
	return book.Bid
}

// Mode selects whether the target quantity is a size or a notional amount.
type Mode uint8

const (
	// SizeIn fills until Params.SizeTarget units are filled.
	SizeIn Mode = iota
	// NotionalIn fills until Params.NotionalTarget quote-currency units
	// have been spent.
	NotionalIn
)

// AbortReason classifies why a simulation stopped short of its target.
type AbortReason uint8

const (
	// None means the target was fully met without tripping a limit. A walk
	// that runs out of levels (or finds the side empty) with a residual
	// left is reported as Exhausted.
	None AbortReason = iota
	Slippage
	PriceCap
	Exhausted
)

func (a AbortReason) String() string {
	switch a {
	case None:
		return "none"
	case Slippage:
		return "slippage"
	case PriceCap:
		return "price_cap"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Limits bounds a simulation. The zero value imposes no limits beyond
// running out of liquidity.
type Limits struct {
	MaxSlippageBps    int64 // 0 with HasMaxSlippageBps false means unset
	HasMaxSlippageBps bool

	MaxPriceTick    fixedpoint.PriceTick
	HasMaxPriceTick bool

	FeeBps   int64
	FeeFixed decimal.Decimal
}

// Params describes one simulation request.
type Params struct {
	Side           TradeSide
	Mode           Mode
	SizeTarget     fixedpoint.SizeFixed // used when Mode == SizeIn
	NotionalTarget decimal.Decimal      // used when Mode == NotionalIn
	Limits         Limits
}

// FillLevel is one level consumed during the walk.
type FillLevel struct {
	Tick fixedpoint.PriceTick
	Size fixedpoint.SizeFixed
}

// Execution is the result of a simulation. The Book is never mutated to
// produce it (spec P6).
type Execution struct {
	Side TradeSide
	Mode Mode

	FilledSize    fixedpoint.SizeFixed
	AvgPriceTicks decimal.Decimal // average fill price, in tick units
	AvgPrice      decimal.Decimal // average fill price, in quote-currency decimal
	TotalNotional decimal.Decimal // Σ price·size over filled levels, before fees
	Fees          decimal.Decimal
	TotalCost     decimal.Decimal // TotalNotional + Fees

	ResidualSize     fixedpoint.SizeFixed // unfilled quantity, SizeIn mode
	ResidualNotional decimal.Decimal      // unmet notional, NotionalIn mode

	LevelsConsumed int
	Fills          []FillLevel
	ImpactBps      int64

	AbortedBy AbortReason
}

// ErrSimulationOverflow is fatal for the simulation that triggered it; the
// Book is unaffected (spec §7 Simulation error kind).
var ErrSimulationOverflow = errors.New("execsim: notional accumulator overflow")

var ErrEmptySide = errors.New("execsim: no liquidity on the requested side")

// Simulate walks the side opposite p.Side (asks for a Buy, bids for a Sell)
// from the touch outward, accumulating fills until the target is met, a
// limit is violated, or the side is exhausted. It never mutates b. Takes
// b's RLock for the whole walk so the ladder can't change shape underneath
// the simulation while it runs.
func Simulate(b *book.Book, p Params) (Execution, error) {
	b.RLock()
	defer b.RUnlock()

	ladder := b.Ladder(p.Side.opposite())
	exec := Execution{Side: p.Side, Mode: p.Mode}

	if p.Mode == SizeIn {
		exec.ResidualSize = p.SizeTarget
	} else {
		exec.ResidualNotional = p.NotionalTarget
	}

	if ladder.Len() == 0 {
		exec.AbortedBy = Exhausted
		exec.AvgPrice = decimal.Zero
		exec.AvgPriceTicks = decimal.Zero
		exec.TotalNotional = decimal.Zero
		exec.Fees = decimal.Zero
		exec.TotalCost = decimal.Zero
		return exec, nil
	}

	levels := ladder.BestN(ladder.Len())

	rawNotional := new(uint256.Int) // Σ tick·size over consumed levels, unscaled
	var firstTick, lastTick fixedpoint.PriceTick
	haveFirst := false

	for _, lv := range levels {
		if p.Limits.HasMaxPriceTick {
			if p.Side == Buy && lv.Tick > p.Limits.MaxPriceTick {
				exec.AbortedBy = PriceCap
				break
			}
			if p.Side == Sell && lv.Tick < p.Limits.MaxPriceTick {
				exec.AbortedBy = PriceCap
				break
			}
		}

		if haveFirst && p.Limits.HasMaxSlippageBps && firstTick != 0 {
			slippageBps := absBpsDelta(firstTick, lv.Tick)
			if slippageBps > p.Limits.MaxSlippageBps {
				exec.AbortedBy = Slippage
				break
			}
		}

		consumed, done, err := consumeLevel(&exec, lv, rawNotional, b.Domain)
		if err != nil {
			return Execution{}, err
		}
		if consumed > 0 {
			exec.Fills = append(exec.Fills, FillLevel{Tick: lv.Tick, Size: consumed})
			exec.LevelsConsumed++
			exec.FilledSize += consumed
			if !haveFirst {
				firstTick = lv.Tick
				haveFirst = true
			}
			lastTick = lv.Tick
		}
		if done {
			break
		}
	}

	if exec.AbortedBy == None {
		exhausted := (p.Mode == SizeIn && exec.ResidualSize > 0) ||
			(p.Mode == NotionalIn && exec.ResidualNotional.Sign() > 0)
		if exhausted {
			exec.AbortedBy = Exhausted
		}
	}

	exec.TotalNotional = rawToNotional(rawNotional, b.Domain)
	exec.Fees = computeFees(exec.TotalNotional, p.Limits)
	exec.TotalCost = exec.TotalNotional.Add(exec.Fees)

	if exec.FilledSize > 0 {
		exec.AvgPriceTicks = decimal.NewFromBigInt(rawNotional.ToBig(), 0).
			Div(decimal.NewFromInt(int64(exec.FilledSize)))
		exec.AvgPrice = exec.AvgPriceTicks.Mul(b.Domain.TickSize)
	} else {
		exec.AvgPriceTicks = decimal.Zero
		exec.AvgPrice = decimal.Zero
	}

	if haveFirst && firstTick != 0 {
		exec.ImpactBps = bpsDelta(firstTick, lastTick)
	}

	return exec, nil
}

// consumeLevel applies one level's fill to exec's residual/target state and
// accumulates the raw (unscaled) notional. Returns the size consumed and
// whether the target has now been fully met.
func consumeLevel(exec *Execution, lv book.LevelEntry, rawNotional *uint256.Int, dom fixedpoint.TickDomain) (fixedpoint.SizeFixed, bool, error) {
	switch exec.Mode {
	case SizeIn:
		consumed := lv.Size
		if consumed > exec.ResidualSize {
			consumed = exec.ResidualSize
		}
		if consumed <= 0 {
			return 0, true, nil
		}
		if err := addRaw(rawNotional, lv.Tick, consumed); err != nil {
			return 0, false, err
		}
		exec.ResidualSize -= consumed
		return consumed, exec.ResidualSize == 0, nil

	case NotionalIn:
		if exec.ResidualNotional.Sign() <= 0 {
			return 0, true, nil
		}
		if lv.Tick == 0 {
			// A zero price level has zero cost: consume it wholesale,
			// it can never move the residual notional.
			if err := addRaw(rawNotional, lv.Tick, lv.Size); err != nil {
				return 0, false, err
			}
			return lv.Size, false, nil
		}

		levelCost := tickSizeToNotional(lv.Tick, lv.Size, dom)
		if levelCost.Cmp(exec.ResidualNotional) <= 0 {
			if err := addRaw(rawNotional, lv.Tick, lv.Size); err != nil {
				return 0, false, err
			}
			exec.ResidualNotional = exec.ResidualNotional.Sub(levelCost)
			return lv.Size, exec.ResidualNotional.Sign() == 0, nil
		}

		// Partial fill: take just enough of this level to meet the target.
		partial := partialSizeForNotional(exec.ResidualNotional, lv.Tick, dom)
		if partial <= 0 {
			return 0, true, nil
		}
		if partial > lv.Size {
			partial = lv.Size
		}
		if err := addRaw(rawNotional, lv.Tick, partial); err != nil {
			return 0, false, err
		}
		exec.ResidualNotional = decimal.Zero
		return partial, true, nil

	default:
		return 0, true, fmt.Errorf("execsim: unknown mode %d", exec.Mode)
	}
}

// addRaw accumulates tick·size into the 128-bit-class accumulator, guarding
// against overflow of the underlying uint256.
func addRaw(acc *uint256.Int, tick fixedpoint.PriceTick, size fixedpoint.SizeFixed) error {
	t := uint256.NewInt(uint64(tick))
	s := uint256.NewInt(uint64(size))
	product, overflow := new(uint256.Int).MulOverflow(t, s)
	if overflow {
		return ErrSimulationOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(acc, product)
	if overflow {
		return ErrSimulationOverflow
	}
	acc.Set(sum)
	return nil
}

// rawToNotional converts the raw Σtick·size accumulator into a decimal
// quote-currency amount: price = tick·TickSize, size = sizeFixed/SizeScale,
// so notional = raw · TickSize / SizeScale.
func rawToNotional(raw *uint256.Int, dom fixedpoint.TickDomain) decimal.Decimal {
	return decimal.NewFromBigInt(raw.ToBig(), 0).
		Mul(dom.TickSize).
		Div(decimal.NewFromInt(dom.SizeScale))
}

// tickSizeToNotional is rawToNotional for a single (tick, size) pair,
// expressed directly in big.Int to avoid constructing an intermediate
// uint256 accumulator for a one-off comparison.
func tickSizeToNotional(tick fixedpoint.PriceTick, size fixedpoint.SizeFixed, dom fixedpoint.TickDomain) decimal.Decimal {
	raw := new(big.Int).Mul(big.NewInt(int64(tick)), big.NewInt(int64(size)))
	return decimal.NewFromBigInt(raw, 0).Mul(dom.TickSize).Div(decimal.NewFromInt(dom.SizeScale))
}

// partialSizeForNotional returns the largest SizeFixed whose cost at tick
// does not exceed target notional: size = target · SizeScale / (tick·TickSize).
func partialSizeForNotional(target decimal.Decimal, tick fixedpoint.PriceTick, dom fixedpoint.TickDomain) fixedpoint.SizeFixed {
	price := dom.TickSize.Mul(decimal.NewFromInt(int64(tick)))
	if price.Sign() <= 0 {
		return 0
	}
	sizeDecimal := target.Mul(decimal.NewFromInt(dom.SizeScale)).Div(price)
	return fixedpoint.SizeFixed(sizeDecimal.Floor().IntPart())
}

// computeFees applies fee_bps to the notional and adds fee_fixed.
func computeFees(notional decimal.Decimal, limits Limits) decimal.Decimal {
	fee := decimal.Zero
	if limits.FeeBps != 0 {
		fee = notional.Mul(decimal.NewFromInt(limits.FeeBps)).Div(decimal.NewFromInt(10_000))
	}
	return fee.Add(limits.FeeFixed)
}

// bpsDelta returns the signed 10_000 · (to − from) / from, the literal
// ImpactBps formula (spec §4.D).
func bpsDelta(from, to fixedpoint.PriceTick) int64 {
	if from == 0 {
		return 0
	}
	return 10_000 * (int64(to) - int64(from)) / int64(from)
}

// absBpsDelta is bpsDelta's magnitude, used for the slippage-limit check:
// a limit is tripped by how far the price has moved, regardless of side.
func absBpsDelta(from, to fixedpoint.PriceTick) int64 {
	d := bpsDelta(from, to)
	if d < 0 {
		return -d
	}
	return d
}
