package api

import (
	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/pkg/fixedpoint"
)

const defaultViewDepth = 20

func bookState(s book.State) string {
	switch s {
	case book.Live:
		return "live"
	case book.AwaitingSnapshot:
		return "awaiting_snapshot"
	case book.Poisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// levelViews and fillQuoteFields are internal helpers: they assume the
// caller already holds the Book's Lock or RLock for the duration of the
// whole read, so they never lock themselves.
func levelViews(l *book.Ladder, dom fixedpoint.TickDomain, depth int) []LevelView {
	entries := l.BestN(depth)
	views := make([]LevelView, 0, len(entries))
	for _, e := range entries {
		views = append(views, LevelView{
			Price: fixedpoint.DequantizePrice(e.Tick, dom).String(),
			Size:  fixedpoint.DequantizeSize(e.Size, dom.SizeScale).String(),
		})
	}
	return views
}

// BuildBookView renders a full get_book response for b, truncated to depth
// levels per side (0 uses defaultViewDepth). Takes b's RLock for the whole
// read so the view reflects one consistent update, not a torn mix of two.
func BuildBookView(b *book.Book, depth int) BookView {
	if depth <= 0 {
		depth = defaultViewDepth
	}

	b.RLock()
	defer b.RUnlock()

	view := BookView{
		InstrumentID: b.InstrumentID,
		State:        bookState(b.State()),
		Sequence:     b.LastSequence(),
		LastUpdated:  b.LastUpdate(),
		Bids:         levelViews(b.Bids, b.Domain, depth),
		Asks:         levelViews(b.Asks, b.Domain, depth),
	}

	fillQuoteFields(&view.BestBid, &view.BestAsk, &view.Spread, &view.Mid, &view.SpreadBps, b)
	return view
}

// BuildQuoteView renders a best_bid/best_ask/spread/mid response for b.
// Takes b's RLock for the whole read so the quote reflects one consistent
// update, not a torn mix of two.
func BuildQuoteView(b *book.Book) QuoteView {
	b.RLock()
	defer b.RUnlock()

	view := QuoteView{InstrumentID: b.InstrumentID}
	fillQuoteFields(&view.BestBid, &view.BestAsk, &view.Spread, &view.Mid, &view.SpreadBps, b)
	return view
}

func fillQuoteFields(bestBid, bestAsk, spread, mid *string, spreadBps **int64, b *book.Book) {
	bid, ask, bidOK, askOK := b.BestBidAsk()
	if bidOK {
		*bestBid = fixedpoint.DequantizePrice(bid, b.Domain).String()
	}
	if askOK {
		*bestAsk = fixedpoint.DequantizePrice(ask, b.Domain).String()
	}
	if spreadTicks, ok := b.SpreadTicks(); ok {
		*spread = b.Domain.TickSize.Mul(decimal.NewFromInt(spreadTicks)).String()
	}
	if midTicks, _, ok := b.MidTicks(); ok {
		*mid = fixedpoint.DequantizePrice(midTicks, b.Domain).String()
	}
	if bps, ok := b.SpreadBps(); ok {
		v := bps
		*spreadBps = &v
	}
}
