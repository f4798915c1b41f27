// Package feed is the feed-adapter boundary: it decodes wire frames (the
// WebSocket market-channel events in polyclob/internal/exchange) into the
// UpdateRecord shape the Book Registry consumes. A Decoder is the one
// dynamic-dispatch point in the core — everything downstream of it is a
// concrete UpdateRecord, branch-predictable and monomorphic.
package feed

import (
	"time"

	"polyclob/internal/book"
	"polyclob/pkg/fixedpoint"
)

// Kind distinguishes a full replacement from an incremental change set.
type Kind uint8

const (
	Snapshot Kind = iota
	Delta
)

// ChangeEntry is one (side, price, size) triple. In a Snapshot, size is
// always > 0. In a Delta, size == 0 removes the level.
type ChangeEntry struct {
	Side  book.Side
	Price fixedpoint.PriceTick
	Size  fixedpoint.SizeFixed
}

// UpdateRecord is the unit the feed decoder produces and the registry
// consumes. It already carries quantized PriceTick/SizeFixed values — the
// decoder is responsible for calling fixedpoint.Quantize* against the
// instrument's TickDomain before constructing one of these.
type UpdateRecord struct {
	Kind         Kind
	InstrumentID string
	Sequence     uint64
	Timestamp    time.Time
	Changes      []ChangeEntry
}
