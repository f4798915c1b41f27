package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/internal/execsim"
	"polyclob/pkg/fixedpoint"
)

// SizeRequest describes what a strategy wants to execute: a target
// notional, in which direction, and the maximum size it is willing to
// take on regardless of how much liquidity the book can absorb.
type SizeRequest struct {
	Side           execsim.TradeSide
	TargetNotional decimal.Decimal
	MaxSize        fixedpoint.SizeFixed
	Limits         execsim.Limits
}

// Recommendation is what a strategy acts on: how much to order, at what
// average price, and whether the walk hit a limit before the target
// notional was reached.
type Recommendation struct {
	Size      fixedpoint.SizeFixed
	AvgPrice  decimal.Decimal
	Notional  decimal.Decimal
	ImpactBps int64
	Capped    bool // true if the walk filled more than MaxSize and Size was clamped to it
	Aborted   execsim.AbortReason
}

// Sizer turns a book's current liquidity into a bounded order-size
// recommendation, by walking the book with execsim and then clamping to
// the strategy's own size ceiling.
type Sizer struct{}

// NewSizer creates a stateless sizer — all inputs come from the request.
func NewSizer() *Sizer { return &Sizer{} }

// Recommend simulates req against b and returns a capped recommendation.
func (s *Sizer) Recommend(b *book.Book, req SizeRequest) (Recommendation, error) {
	if req.TargetNotional.Sign() <= 0 {
		return Recommendation{}, fmt.Errorf("strategy: target notional must be positive, got %s", req.TargetNotional)
	}

	exec, err := execsim.Simulate(b, execsim.Params{
		Side:           req.Side,
		Mode:           execsim.NotionalIn,
		NotionalTarget: req.TargetNotional,
		Limits:         req.Limits,
	})
	if err != nil {
		return Recommendation{}, err
	}

	rec := Recommendation{
		Size:      exec.FilledSize,
		AvgPrice:  exec.AvgPrice,
		Notional:  exec.TotalNotional,
		ImpactBps: exec.ImpactBps,
		Aborted:   exec.AbortedBy,
	}

	if req.MaxSize > 0 && rec.Size > req.MaxSize {
		rec.Size = req.MaxSize
		rec.Capped = true
		if !exec.AvgPrice.IsZero() {
			rec.Notional = exec.AvgPrice.Mul(fixedpoint.DequantizeSize(rec.Size, b.Domain.SizeScale))
		}
	}

	return rec, nil
}
