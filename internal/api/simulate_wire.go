package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/internal/execsim"
	"polyclob/internal/strategy"
	"polyclob/pkg/fixedpoint"
)

func parseSide(wire string) (book.Side, error) {
	switch wire {
	case "bid":
		return book.Bid, nil
	case "ask":
		return book.Ask, nil
	default:
		return 0, fmt.Errorf("side must be %q or %q, got %q", "bid", "ask", wire)
	}
}

func parseTradeSide(wire string) (execsim.TradeSide, error) {
	switch wire {
	case "buy":
		return execsim.Buy, nil
	case "sell":
		return execsim.Sell, nil
	default:
		return 0, fmt.Errorf("side must be %q or %q, got %q", "buy", "sell", wire)
	}
}

func buildSimulateParams(req SimulateRequest, dom fixedpoint.TickDomain) (execsim.Params, error) {
	side, err := parseTradeSide(req.Side)
	if err != nil {
		return execsim.Params{}, err
	}

	limits := execsim.Limits{FeeBps: req.FeeBps}
	if req.MaxSlippageBps != nil {
		limits.HasMaxSlippageBps = true
		limits.MaxSlippageBps = *req.MaxSlippageBps
	}
	if req.MaxPriceTicks != nil {
		limits.HasMaxPriceTick = true
		limits.MaxPriceTick = fixedpoint.PriceTick(*req.MaxPriceTicks)
	}

	params := execsim.Params{Side: side, Limits: limits}

	switch {
	case req.Size != "":
		params.Mode = execsim.SizeIn
		size, err := decimal.NewFromString(req.Size)
		if err != nil {
			return execsim.Params{}, fmt.Errorf("invalid size %q: %w", req.Size, err)
		}
		target, err := fixedpoint.QuantizeSize(size, dom.SizeScale)
		if err != nil {
			return execsim.Params{}, err
		}
		params.SizeTarget = target
	case req.Notional != "":
		params.Mode = execsim.NotionalIn
		notional, err := decimal.NewFromString(req.Notional)
		if err != nil {
			return execsim.Params{}, fmt.Errorf("invalid notional %q: %w", req.Notional, err)
		}
		params.NotionalTarget = notional
	default:
		return execsim.Params{}, fmt.Errorf("either size or notional must be set")
	}

	return params, nil
}

func buildSimulateResponse(exec execsim.Execution, dom fixedpoint.TickDomain) SimulateResponse {
	fills := make([]FillView, 0, len(exec.Fills))
	for _, f := range exec.Fills {
		fills = append(fills, FillView{
			Price: fixedpoint.DequantizePrice(f.Tick, dom).String(),
			Size:  fixedpoint.DequantizeSize(f.Size, dom.SizeScale).String(),
		})
	}

	return SimulateResponse{
		FilledSize:     fixedpoint.DequantizeSize(exec.FilledSize, dom.SizeScale).String(),
		AvgPrice:       exec.AvgPrice.String(),
		TotalNotional:  exec.TotalNotional.String(),
		Fees:           exec.Fees.String(),
		TotalCost:      exec.TotalCost.String(),
		LevelsConsumed: exec.LevelsConsumed,
		Fills:          fills,
		ImpactBps:      exec.ImpactBps,
		AbortedBy:      exec.AbortedBy.String(),
	}
}

func buildSizeRequest(req RecommendRequest, dom fixedpoint.TickDomain) (strategy.SizeRequest, error) {
	side, err := parseTradeSide(req.Side)
	if err != nil {
		return strategy.SizeRequest{}, err
	}

	notional, err := decimal.NewFromString(req.TargetNotional)
	if err != nil {
		return strategy.SizeRequest{}, fmt.Errorf("invalid target_notional %q: %w", req.TargetNotional, err)
	}

	limits := execsim.Limits{FeeBps: req.FeeBps}
	if req.MaxSlippageBps != nil {
		limits.HasMaxSlippageBps = true
		limits.MaxSlippageBps = *req.MaxSlippageBps
	}
	if req.MaxPriceTicks != nil {
		limits.HasMaxPriceTick = true
		limits.MaxPriceTick = fixedpoint.PriceTick(*req.MaxPriceTicks)
	}

	sizeReq := strategy.SizeRequest{Side: side, TargetNotional: notional, Limits: limits}
	if req.MaxSize != "" {
		maxSize, err := decimal.NewFromString(req.MaxSize)
		if err != nil {
			return strategy.SizeRequest{}, fmt.Errorf("invalid max_size %q: %w", req.MaxSize, err)
		}
		quantized, err := fixedpoint.QuantizeSize(maxSize, dom.SizeScale)
		if err != nil {
			return strategy.SizeRequest{}, err
		}
		sizeReq.MaxSize = quantized
	}

	return sizeReq, nil
}

func buildRecommendResponse(rec strategy.Recommendation, dom fixedpoint.TickDomain) RecommendResponse {
	return RecommendResponse{
		Size:      fixedpoint.DequantizeSize(rec.Size, dom.SizeScale).String(),
		AvgPrice:  rec.AvgPrice.String(),
		Notional:  rec.Notional.String(),
		ImpactBps: rec.ImpactBps,
		Capped:    rec.Capped,
		AbortedBy: rec.Aborted.String(),
	}
}
