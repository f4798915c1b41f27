// Package ingest wires a market feed's decoded frames into the Book
// Registry. It is the single logical consumer spec §5 requires per
// instrument: one goroutine draining two channels in FIFO order, so
// per-instrument ordering is preserved without any extra synchronization.
package ingest

import (
	"context"
	"log/slog"

	"polyclob/internal/exchange"
	"polyclob/internal/feed"
	"polyclob/internal/registry"
	"polyclob/pkg/types"
)

// Resyncer fetches a fresh REST snapshot for an instrument and applies it
// to the registry. Called when a sequence gap leaves a Book
// AwaitingSnapshot; the registry's own ApplyUpdate path only detects the
// gap, it cannot fetch a new snapshot itself.
type Resyncer interface {
	Resync(ctx context.Context, instrumentID string)
}

// Observer receives a callback after every ApplyUpdate call, whatever its
// outcome (Rejected and GapDetected included), for a best-effort consumer (e.g. the dashboard WS feed) that must never
// slow down or block ingestion.
type Observer interface {
	ObserveApply(instrumentID string, result registry.ApplyResult)
}

// Ingestor drains a MarketFeed's book and price_change channels, decodes
// each frame, and applies it to a registry.
type Ingestor struct {
	feed     *exchange.MarketFeed
	decoder  feed.Decoder
	reg      *registry.Registry
	resync   Resyncer
	observer Observer
	logger   *slog.Logger
}

// New wires a feed, decoder, and registry together. resync and observer
// may be nil.
func New(f *exchange.MarketFeed, d feed.Decoder, r *registry.Registry, resync Resyncer, observer Observer, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{feed: f, decoder: d, reg: r, resync: resync, observer: observer, logger: logger.With("component", "ingest")}
}

// Run drains both channels until ctx is cancelled or the feed closes them.
func (in *Ingestor) Run(ctx context.Context) {
	books := in.feed.BookEvents()
	changes := in.feed.PriceChangeEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-books:
			if !ok {
				return
			}
			in.handleBook(ctx, evt)
		case evt, ok := <-changes:
			if !ok {
				return
			}
			in.handlePriceChange(ctx, evt)
		}
	}
}

func (in *Ingestor) handleBook(ctx context.Context, evt types.WSBookEvent) {
	rec, err := in.decoder.DecodeBook(evt)
	if err != nil {
		in.logger.Warn("dropping unparseable book frame", "instrument", evt.AssetID, "error", err)
		return
	}
	in.apply(ctx, rec)
}

func (in *Ingestor) handlePriceChange(ctx context.Context, evt types.WSPriceChangeEvent) {
	rec, err := in.decoder.DecodePriceChange(evt)
	if err != nil {
		in.logger.Warn("dropping unparseable price_change frame", "instrument", evt.AssetID, "error", err)
		return
	}
	in.apply(ctx, rec)
}

func (in *Ingestor) apply(ctx context.Context, rec feed.UpdateRecord) {
	result := in.reg.ApplyUpdate(rec)
	switch result.Outcome {
	case registry.Rejected:
		in.logger.Error("update rejected", "instrument", rec.InstrumentID, "sequence", rec.Sequence, "reason", result.RejectReason)
	case registry.GapDetected:
		in.logger.Warn("sequence gap, awaiting snapshot", "instrument", rec.InstrumentID, "expected", result.Expected, "observed", result.Observed)
		if in.resync != nil {
			go in.resync.Resync(ctx, rec.InstrumentID)
		}
	default:
		in.logger.Debug("update applied", "instrument", rec.InstrumentID, "sequence", rec.Sequence, "outcome", result.Outcome.String())
	}

	if in.observer != nil {
		in.observer.ObserveApply(rec.InstrumentID, result)
	}
}
