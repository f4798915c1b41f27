// Package market resolves a Polymarket binary market's tick-size
// descriptor from the Gamma API: the out-of-band step spec §6 requires
// before the Book Registry can apply its first update for an instrument.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"polyclob/internal/config"
	"polyclob/pkg/fixedpoint"
	"polyclob/pkg/types"
)

// GammaMarket is the subset of the Gamma API's market JSON shape needed to
// build a tick-size descriptor and token-ID mapping.
type GammaMarket struct {
	ID                    string  `json:"id"`
	Question              string  `json:"question"`
	ConditionID           string  `json:"conditionId"`
	Slug                  string  `json:"slug"`
	Active                bool    `json:"active"`
	Closed                bool    `json:"closed"`
	AcceptingOrders       bool    `json:"acceptingOrders"`
	EnableOrderBook       bool    `json:"enableOrderBook"`
	ClobTokenIds          string  `json:"clobTokenIds"` // JSON-encoded [yesID, noID]
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
	OrderMinSize          float64 `json:"orderMinSize"`
}

// Descriptor pairs a resolved MarketInfo with the two token-level tick
// domains the registry needs (YES and NO token IDs are separate
// instruments with the same tick size and size scale).
type Descriptor struct {
	Info      types.MarketInfo
	YesDomain fixedpoint.TickDomain
	NoDomain  fixedpoint.TickDomain
}

// Resolver fetches Gamma market descriptors by condition ID.
type Resolver struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewResolver creates a descriptor resolver pointed at the Gamma API.
func NewResolver(cfg config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Resolver{http: client, logger: logger.With("component", "market_descriptor")}
}

// Resolve fetches and converts one market by condition ID.
func (r *Resolver) Resolve(ctx context.Context, conditionID string) (Descriptor, error) {
	var markets []GammaMarket
	resp, err := r.http.R().
		SetContext(ctx).
		SetQueryParam("condition_ids", conditionID).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return Descriptor{}, fmt.Errorf("market: fetch %s: %w", conditionID, err)
	}
	if resp.StatusCode() != 200 {
		return Descriptor{}, fmt.Errorf("market: fetch %s: status %d", conditionID, resp.StatusCode())
	}
	if len(markets) == 0 {
		return Descriptor{}, fmt.Errorf("market: condition %s not found", conditionID)
	}

	return convert(markets[0])
}

func convert(m GammaMarket) (Descriptor, error) {
	if !m.Active || m.Closed || !m.AcceptingOrders || !m.EnableOrderBook {
		return Descriptor{}, fmt.Errorf("market: %s is not tradeable (active=%v closed=%v accepting=%v order_book=%v)",
			m.ConditionID, m.Active, m.Closed, m.AcceptingOrders, m.EnableOrderBook)
	}

	yesID, noID, err := splitTokenIDs(m.ClobTokenIds)
	if err != nil {
		return Descriptor{}, fmt.Errorf("market: %s: %w", m.ConditionID, err)
	}

	tickSize, err := tickSizeFromFloat(m.OrderPriceMinTickSize)
	if err != nil {
		return Descriptor{}, fmt.Errorf("market: %s: %w", m.ConditionID, err)
	}

	dom := fixedpoint.TickDomain{
		TickSize:  decimal.NewFromFloat(m.OrderPriceMinTickSize),
		SizeScale: sizeScaleFromMinOrder(m.OrderMinSize),
		MinTick:   0,
		MaxTick:   maxTickFor(tickSize),
	}

	info := types.MarketInfo{
		ID:              m.ID,
		ConditionID:     m.ConditionID,
		Slug:            m.Slug,
		Question:        m.Question,
		YesTokenID:      yesID,
		NoTokenID:       noID,
		TickSize:        tickSize,
		MinOrderSize:    m.OrderMinSize,
		Active:          m.Active,
		Closed:          m.Closed,
		AcceptingOrders: m.AcceptingOrders,
	}

	return Descriptor{Info: info, YesDomain: dom, NoDomain: dom}, nil
}

func splitTokenIDs(raw string) (yes, no string, err error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return "", "", fmt.Errorf("parse clobTokenIds: %w", err)
	}
	if len(ids) != 2 {
		return "", "", fmt.Errorf("expected 2 token ids, got %d", len(ids))
	}
	return ids[0], ids[1], nil
}

func tickSizeFromFloat(f float64) (types.TickSize, error) {
	switch {
	case f >= 0.1-1e-9:
		return types.Tick01, nil
	case f >= 0.01-1e-9:
		return types.Tick001, nil
	case f >= 0.001-1e-9:
		return types.Tick0001, nil
	case f >= 0.0001-1e-9:
		return types.Tick00001, nil
	default:
		return "", fmt.Errorf("unsupported tick size %v", f)
	}
}

func maxTickFor(ts types.TickSize) fixedpoint.PriceTick {
	// A binary market's price lives in [0, 1]; max tick is 1 / tick_size.
	switch ts {
	case types.Tick01:
		return 10
	case types.Tick001:
		return 100
	case types.Tick0001:
		return 1000
	case types.Tick00001:
		return 10000
	default:
		return 100
	}
}

// sizeScaleFromMinOrder derives a power-of-ten size scale fine enough to
// represent the market's minimum order size exactly. Polymarket sizes are
// denominated in whole and fractional shares; a conservative 10^6 scale
// covers every min_order_size Gamma has published to date, but a market
// with a finer minimum gets a proportionally finer scale.
func sizeScaleFromMinOrder(minOrderSize float64) int64 {
	const defaultScale = 1_000_000
	if minOrderSize <= 0 {
		return defaultScale
	}
	s := strconv.FormatFloat(minOrderSize, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		decimals := len(s) - i - 1
		if decimals > 6 {
			scale := int64(1)
			for n := 0; n < decimals; n++ {
				scale *= 10
			}
			return scale
		}
	}
	return defaultScale
}
