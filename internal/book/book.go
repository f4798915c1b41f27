package book

import (
	"sync"
	"time"

	"polyclob/pkg/fixedpoint"
)

// State is the per-Book state machine spec §4.C describes.
type State uint8

const (
	// Live means deltas are applied normally against the last sequence.
	Live State = iota
	// AwaitingSnapshot means a sequence gap was detected; further deltas
	// are dropped until a Snapshot arrives.
	AwaitingSnapshot
	// Poisoned means an Invariant error occurred; the Book is excluded
	// from further updates.
	Poisoned
)

// Book owns the two-sided ladder for one instrument plus its sequence and
// tick-domain state. A Book is created lazily by the registry on first
// sight of an instrument and is never shared: ladder ownership is exclusive
// to its Book (spec §9 — do not share ladder references across books).
//
// mu guards everything below it (both ladders plus the sequence/state
// bookkeeping). The registry's apply path holds the exclusive lock (via
// Lock/Unlock) for the duration of one update; every other accessor on Book
// reads or writes unprotected fields directly and assumes the caller holds
// at least RLock. InstrumentID and Domain are set once in NewBook and never
// change afterward, so they're safe to read without holding mu.
type Book struct {
	InstrumentID string
	Domain       fixedpoint.TickDomain

	Bids *Ladder
	Asks *Ladder

	mu sync.RWMutex

	state       State
	initialized bool // true once any update has been successfully applied
	lastSeq     uint64
	lastGood    uint64 // last sequence the Book was Live at, kept across AwaitingSnapshot
	lastUpdate  time.Time
}

// Lock acquires exclusive access to the Book. The registry's apply path
// holds this for the full duration of one update (snapshot or delta),
// serializing it against every other writer and reader of this Book.
func (b *Book) Lock() { b.mu.Lock() }

// Unlock releases a lock acquired with Lock.
func (b *Book) Unlock() { b.mu.Unlock() }

// RLock acquires shared access to the Book for a query spanning more than
// one accessor call (e.g. ladder levels plus sequence/state), so the read
// observes one consistent update rather than a torn mix of two.
func (b *Book) RLock() { b.mu.RLock() }

// RUnlock releases a lock acquired with RLock.
func (b *Book) RUnlock() { b.mu.RUnlock() }

// NewBook creates an empty Book for one instrument, with both sides capped
// at maxDepth (spec §6 max_depth_per_side, default 100).
func NewBook(instrumentID string, domain fixedpoint.TickDomain, maxDepth int) *Book {
	return &Book{
		InstrumentID: instrumentID,
		Domain:       domain,
		Bids:         NewLadder(Bid, maxDepth),
		Asks:         NewLadder(Ask, maxDepth),
		state:        AwaitingSnapshot, // no data yet; first Snapshot promotes to Live
	}
}

// State returns the current lifecycle state. Caller must hold Lock or
// RLock.
func (b *Book) State() State { return b.state }

// Initialized reports whether any update has ever been successfully
// applied to this Book. A brand-new Book (lazily created by the registry
// on first sight, no Snapshot applied yet) is AwaitingSnapshot but not
// Initialized — the distinction that separates a first Snapshot's Applied
// outcome from a resync's Resynced outcome (spec §4.C, §8 scenario 3).
// Caller must hold Lock or RLock.
func (b *Book) Initialized() bool { return b.initialized }

// LastSequence returns the last sequence number successfully applied.
// Caller must hold Lock or RLock.
func (b *Book) LastSequence() uint64 { return b.lastSeq }

// LastUpdate returns the timestamp of the most recent successful apply.
// Caller must hold Lock or RLock.
func (b *Book) LastUpdate() time.Time { return b.lastUpdate }

// Ladder returns the ladder for the given side. The ladder's own query
// methods are unprotected; the caller must hold the Book's Lock or RLock
// for the duration of any walk across it.
func (b *Book) Ladder(side Side) *Ladder {
	if side == Bid {
		return b.Bids
	}
	return b.Asks
}

// ApplySequence records bookkeeping shared by every successful apply path
// and (re)enters the Live state. Exported for the registry, which owns the
// decision of *when* an update is valid to apply; the Book only tracks the
// resulting state. Caller must hold Lock.
func (b *Book) ApplySequence(seq uint64, ts time.Time) {
	b.lastSeq = seq
	b.lastGood = seq
	b.lastUpdate = ts
	b.state = Live
	b.initialized = true
}

// MarkAwaitingSnapshot transitions the Book into AwaitingSnapshot: further
// deltas are dropped until a Snapshot arrives and clears it (spec §4.C).
// Caller must hold Lock.
func (b *Book) MarkAwaitingSnapshot() {
	b.state = AwaitingSnapshot
}

// Poison marks the Book as fatally broken; it is excluded from further
// updates until the caller drops and recreates it. Caller must hold Lock.
func (b *Book) Poison() {
	b.state = Poisoned
}

// BestBidAsk returns the best tick on each side, if present. Caller must
// hold Lock or RLock.
func (b *Book) BestBidAsk() (bid, ask fixedpoint.PriceTick, bidOK, askOK bool) {
	bidTick, _, bidOK := b.Bids.Best()
	askTick, _, askOK := b.Asks.Best()
	return bidTick, askTick, bidOK, askOK
}

// SpreadTicks returns best_ask - best_bid, if both sides are populated.
// Caller must hold Lock or RLock.
func (b *Book) SpreadTicks() (int64, bool) {
	bid, ask, bidOK, askOK := b.BestBidAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return int64(ask) - int64(bid), true
}

// MidTicks returns the integer midpoint of best bid/ask and whether there
// was an extra half-tick remainder (mid_has_half in spec §4.B). Caller must
// hold Lock or RLock.
func (b *Book) MidTicks() (mid fixedpoint.PriceTick, hasHalf bool, ok bool) {
	bid, ask, bidOK, askOK := b.BestBidAsk()
	if !bidOK || !askOK {
		return 0, false, false
	}
	sum := int64(bid) + int64(ask)
	return fixedpoint.PriceTick(sum / 2), sum%2 != 0, true
}

// SpreadBps returns 10_000 * spread_ticks / mid_ticks, guarding against a
// zero mid (an empty or zero-price book). Caller must hold Lock or RLock.
func (b *Book) SpreadBps() (int64, bool) {
	spread, ok := b.SpreadTicks()
	if !ok {
		return 0, false
	}
	mid, _, ok := b.MidTicks()
	if !ok || mid == 0 {
		return 0, false
	}
	return 10_000 * spread / int64(mid), true
}
