package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/pkg/fixedpoint"
	"polyclob/pkg/types"
)

func decimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// Decoder converts a raw market-channel wire event into an UpdateRecord.
// It is the one dynamic-dispatch point between the network boundary and
// the registry's monomorphic apply path.
type Decoder interface {
	DecodeBook(evt types.WSBookEvent) (UpdateRecord, error)
	DecodePriceChange(evt types.WSPriceChangeEvent) (UpdateRecord, error)
}

// DomainResolver looks up the tick-size domain for an instrument, as
// registered out-of-band by internal/market's descriptor fetch.
type DomainResolver interface {
	Domain(instrumentID string) (fixedpoint.TickDomain, bool)
}

// PolymarketDecoder decodes Polymarket market-channel wire events. The wire
// protocol does not carry a monotonic sequence number (levels are
// versioned by an opaque content hash instead), so the decoder assigns one
// itself: a per-instrument counter that a "book" event resets to 1 and
// each subsequent "price_change" event increments by 1. This reproduces
// the snapshot/delta sequencing contract the registry depends on without
// inventing a number that Polymarket's wire format doesn't have.
type PolymarketDecoder struct {
	resolver DomainResolver

	mu  sync.Mutex
	seq map[string]uint64
}

// NewPolymarketDecoder creates a decoder resolving tick domains via r.
func NewPolymarketDecoder(r DomainResolver) *PolymarketDecoder {
	return &PolymarketDecoder{
		resolver: r,
		seq:      make(map[string]uint64),
	}
}

// DecodeBook converts a full snapshot event.
func (d *PolymarketDecoder) DecodeBook(evt types.WSBookEvent) (UpdateRecord, error) {
	dom, ok := d.resolver.Domain(evt.AssetID)
	if !ok {
		return UpdateRecord{}, fmt.Errorf("feed: no tick domain registered for instrument %s", evt.AssetID)
	}

	ts, err := types.MarketTimestamp(evt.Timestamp)
	if err != nil {
		return UpdateRecord{}, fmt.Errorf("feed: parse timestamp: %w", err)
	}

	changes := make([]ChangeEntry, 0, len(evt.Buys)+len(evt.Sells))
	for _, lv := range evt.Buys {
		c, err := decodeLevel(book.Bid, lv, dom)
		if err != nil {
			return UpdateRecord{}, err
		}
		changes = append(changes, c)
	}
	for _, lv := range evt.Sells {
		c, err := decodeLevel(book.Ask, lv, dom)
		if err != nil {
			return UpdateRecord{}, err
		}
		changes = append(changes, c)
	}

	d.mu.Lock()
	d.seq[evt.AssetID] = 1
	seq := d.seq[evt.AssetID]
	d.mu.Unlock()

	return UpdateRecord{
		Kind:         Snapshot,
		InstrumentID: evt.AssetID,
		Sequence:     seq,
		Timestamp:    ts,
		Changes:      changes,
	}, nil
}

// DecodeRESTSnapshot converts a REST GET /book response into a Snapshot
// UpdateRecord, resetting the instrument's sequence counter the same way
// DecodeBook does. Used both to seed a Book ahead of the first WS message
// and to resync a Book the registry has marked AwaitingSnapshot after a
// sequence gap.
func (d *PolymarketDecoder) DecodeRESTSnapshot(resp types.BookResponse) (UpdateRecord, error) {
	dom, ok := d.resolver.Domain(resp.AssetID)
	if !ok {
		return UpdateRecord{}, fmt.Errorf("feed: no tick domain registered for instrument %s", resp.AssetID)
	}

	var ts time.Time
	if resp.Timestamp != "" {
		var err error
		ts, err = types.MarketTimestamp(resp.Timestamp)
		if err != nil {
			return UpdateRecord{}, fmt.Errorf("feed: parse timestamp: %w", err)
		}
	} else {
		ts = time.Now()
	}

	changes := make([]ChangeEntry, 0, len(resp.Bids)+len(resp.Asks))
	for _, lv := range resp.Bids {
		c, err := decodeLevel(book.Bid, lv, dom)
		if err != nil {
			return UpdateRecord{}, err
		}
		changes = append(changes, c)
	}
	for _, lv := range resp.Asks {
		c, err := decodeLevel(book.Ask, lv, dom)
		if err != nil {
			return UpdateRecord{}, err
		}
		changes = append(changes, c)
	}

	d.mu.Lock()
	d.seq[resp.AssetID] = 1
	seq := d.seq[resp.AssetID]
	d.mu.Unlock()

	return UpdateRecord{
		Kind:         Snapshot,
		InstrumentID: resp.AssetID,
		Sequence:     seq,
		Timestamp:    ts,
		Changes:      changes,
	}, nil
}

// DecodePriceChange converts an incremental price_change event.
func (d *PolymarketDecoder) DecodePriceChange(evt types.WSPriceChangeEvent) (UpdateRecord, error) {
	dom, ok := d.resolver.Domain(evt.AssetID)
	if !ok {
		return UpdateRecord{}, fmt.Errorf("feed: no tick domain registered for instrument %s", evt.AssetID)
	}

	ts, err := types.MarketTimestamp(evt.Timestamp)
	if err != nil {
		return UpdateRecord{}, fmt.Errorf("feed: parse timestamp: %w", err)
	}

	changes := make([]ChangeEntry, 0, len(evt.PriceChanges))
	for _, pc := range evt.PriceChanges {
		side, err := decodeSide(pc.Side)
		if err != nil {
			return UpdateRecord{}, err
		}
		c, err := decodeLevel(side, types.PriceLevel{Price: pc.Price, Size: pc.Size}, dom)
		if err != nil {
			return UpdateRecord{}, err
		}
		changes = append(changes, c)
	}

	d.mu.Lock()
	d.seq[evt.AssetID]++
	seq := d.seq[evt.AssetID]
	d.mu.Unlock()

	return UpdateRecord{
		Kind:         Delta,
		InstrumentID: evt.AssetID,
		Sequence:     seq,
		Timestamp:    ts,
		Changes:      changes,
	}, nil
}

func decodeLevel(side book.Side, lv types.PriceLevel, dom fixedpoint.TickDomain) (ChangeEntry, error) {
	price, err := decimalFromString(lv.Price)
	if err != nil {
		return ChangeEntry{}, fmt.Errorf("feed: parse price %q: %w", lv.Price, err)
	}
	size, err := decimalFromString(lv.Size)
	if err != nil {
		return ChangeEntry{}, fmt.Errorf("feed: parse size %q: %w", lv.Size, err)
	}

	tick, err := fixedpoint.QuantizePrice(price, dom)
	if err != nil {
		return ChangeEntry{}, err
	}
	qsize, err := fixedpoint.QuantizeSize(size, dom.SizeScale)
	if err != nil {
		return ChangeEntry{}, err
	}

	return ChangeEntry{Side: side, Price: tick, Size: qsize}, nil
}

func decodeSide(wire string) (book.Side, error) {
	switch wire {
	case "BUY", "buy":
		return book.Bid, nil
	case "SELL", "sell":
		return book.Ask, nil
	default:
		return 0, fmt.Errorf("%w: unknown wire side %q", book.ErrUnknownSide, wire)
	}
}
