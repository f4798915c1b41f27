// Package engine is the central orchestrator of the book-observer process.
//
// It wires together the whole pipeline:
//
//  1. market.Resolver fetches each configured condition ID's tick-size
//     descriptor from the Gamma API and registers it with the registry.
//  2. exchange.Client fetches an initial REST snapshot for each token so
//     the registry starts Live rather than AwaitingSnapshot, and is
//     re-fetched whenever the registry detects a sequence gap.
//  3. exchange.MarketFeed streams book/price_change events; ingest.Ingestor
//     decodes and applies them to the registry.
//  4. A staleness sweep periodically evicts idle books.
//  5. api.Server exposes the registry as a query surface over HTTP/WS, fed
//     a best-effort book_update event after every apply.
//
// Lifecycle: New() → Start() → [runs until ctx is cancelled] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"polyclob/internal/api"
	"polyclob/internal/config"
	"polyclob/internal/exchange"
	"polyclob/internal/feed"
	"polyclob/internal/ingest"
	"polyclob/internal/market"
	"polyclob/internal/registry"
)

// Engine orchestrates every component of the book pipeline.
type Engine struct {
	cfg config.Config

	client   *exchange.Client
	feed     *exchange.MarketFeed
	resolver *market.Resolver
	reg      *registry.Registry
	decoder  *feed.PolymarketDecoder
	ingestor *ingest.Ingestor
	apiSrv   *api.Server

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components. It does not start any
// goroutines or make any network calls until Start is called.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := exchange.NewClient(cfg, logger)
	mktFeed := exchange.NewMarketFeed(cfg.API.WSMarketURL, logger)
	resolver := market.NewResolver(cfg, logger)

	reg := registry.New(registry.InstrumentDescriptor{MaxDepth: cfg.Book.MaxDepthPerSide}, logger)
	decoder := feed.NewPolymarketDecoder(reg)

	var apiSrv *api.Server
	if cfg.Dashboard.Enabled {
		apiSrv = api.NewServer(cfg.Dashboard, reg, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:      cfg,
		client:   client,
		feed:     mktFeed,
		resolver: resolver,
		reg:      reg,
		decoder:  decoder,
		apiSrv:   apiSrv,
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.ingestor = ingest.New(mktFeed, decoder, reg, e, e, logger)
	return e, nil
}

// Start resolves all configured markets, seeds their books, and launches
// the feed, ingestion, staleness-sweep, and (if enabled) API goroutines.
func (e *Engine) Start() error {
	for _, conditionID := range e.cfg.Market.ConditionIDs {
		if err := e.startMarket(e.ctx, conditionID); err != nil {
			e.logger.Error("failed to start market", "condition_id", conditionID, "error", err)
		}
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.feed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("market feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.ingestor.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runStalenessSweep()
	}()

	if len(e.cfg.Market.ConditionIDs) > 0 && e.cfg.Market.PollInterval > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runMarketPoll()
		}()
	}

	if e.apiSrv != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.apiSrv.Start(); err != nil {
				e.logger.Error("api server error", "error", err)
			}
		}()
	}

	return nil
}

// startMarket resolves one condition ID's tick-size descriptors, registers
// both its YES and NO token instruments, fetches their initial REST
// snapshots, and subscribes the market feed to them.
func (e *Engine) startMarket(ctx context.Context, conditionID string) error {
	desc, err := e.resolver.Resolve(ctx, conditionID)
	if err != nil {
		return err
	}

	maxDepth := e.cfg.Book.MaxDepthPerSide
	e.reg.RegisterInstrument(desc.Info.YesTokenID, registry.InstrumentDescriptor{Domain: desc.YesDomain, MaxDepth: maxDepth})
	e.reg.RegisterInstrument(desc.Info.NoTokenID, registry.InstrumentDescriptor{Domain: desc.NoDomain, MaxDepth: maxDepth})

	tokens := []string{desc.Info.YesTokenID, desc.Info.NoTokenID}
	for _, tokenID := range tokens {
		e.fetchAndApplySnapshot(ctx, tokenID)
	}

	if err := e.feed.Subscribe(tokens); err != nil {
		return err
	}

	e.logger.Info("market started", "condition_id", conditionID, "slug", desc.Info.Slug)
	return nil
}

func (e *Engine) fetchAndApplySnapshot(ctx context.Context, tokenID string) {
	resp, err := e.client.GetOrderBook(ctx, tokenID)
	if err != nil {
		e.logger.Error("failed to fetch book snapshot", "token", tokenID, "error", err)
		return
	}
	rec, err := e.decoder.DecodeRESTSnapshot(*resp)
	if err != nil {
		e.logger.Error("failed to decode book snapshot", "token", tokenID, "error", err)
		return
	}
	e.reg.ApplyUpdate(rec)
}

// Resync implements ingest.Resyncer: it re-fetches and re-applies a REST
// snapshot for instrumentID, the only way to clear a gap-detected Book out
// of AwaitingSnapshot.
func (e *Engine) Resync(ctx context.Context, instrumentID string) {
	e.fetchAndApplySnapshot(ctx, instrumentID)
}

// ObserveApply implements ingest.Observer: it pushes a best-effort
// book_update event to any connected dashboard WebSocket clients after
// every successful apply.
func (e *Engine) ObserveApply(instrumentID string, result registry.ApplyResult) {
	if e.apiSrv == nil {
		return
	}
	if result.Outcome != registry.Applied && result.Outcome != registry.Resynced {
		return
	}

	b, ok := e.reg.Get(instrumentID)
	if !ok {
		return
	}

	quote := api.BuildQuoteView(b)

	b.RLock()
	updateTime := b.LastUpdate()
	b.RUnlock()

	e.apiSrv.PublishBookUpdate(api.BookUpdateEvent{
		InstrumentID: instrumentID,
		BestBid:      quote.BestBid,
		BestAsk:      quote.BestAsk,
		Mid:          quote.Mid,
		Spread:       quote.Spread,
		Outcome:      result.Outcome.String(),
		UpdateTime:   updateTime,
	})
}

// runMarketPoll periodically re-resolves every configured condition ID so
// a market that closes or stops accepting orders mid-session is noticed
// even though its Book keeps receiving feed traffic until then.
func (e *Engine) runMarketPoll() {
	ticker := time.NewTicker(e.cfg.Market.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			for _, conditionID := range e.cfg.Market.ConditionIDs {
				desc, err := e.resolver.Resolve(e.ctx, conditionID)
				if err != nil {
					e.logger.Warn("market poll: resolve failed", "condition_id", conditionID, "error", err)
					continue
				}
				if desc.Info.Closed || !desc.Info.AcceptingOrders {
					e.logger.Info("market no longer tradeable", "condition_id", conditionID, "closed", desc.Info.Closed, "accepting_orders", desc.Info.AcceptingOrders)
				}
			}
		}
	}
}

// runStalenessSweep periodically evicts books idle longer than
// cfg.Book.StaleIdleThreshold.
func (e *Engine) runStalenessSweep() {
	threshold := e.cfg.Book.StaleIdleThreshold
	if threshold <= 0 {
		threshold = 5 * time.Minute
	}

	ticker := time.NewTicker(threshold / 2)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if n := e.reg.SweepStale(threshold, time.Now()); n > 0 {
				e.logger.Info("evicted stale books", "count", n)
			}
		}
	}
}

// Registry exposes the Book Registry for callers (e.g. strategies) that
// need direct query access outside the HTTP API.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Stop cancels all goroutines, shuts down the API server if running, and
// waits for clean exit.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()

	if e.apiSrv != nil {
		if err := e.apiSrv.Stop(); err != nil {
			e.logger.Error("api server shutdown error", "error", err)
		}
	}

	e.wg.Wait()
	e.feed.Close()
	e.logger.Info("shutdown complete")
}
