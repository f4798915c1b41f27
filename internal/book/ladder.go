// Package book implements the per-instrument order book: a two-sided Price
// Ladder (this file) and the Book entity that owns both sides plus sequence
// and tick-domain state (book.go).
//
// Ladder is intentionally the only place that touches an ordered container.
// Everything above it (registry, execution simulator) works in terms of
// PriceTick/SizeFixed and the small set of queries exposed here.
package book

import (
	"math"

	"github.com/tidwall/btree"

	"polyclob/pkg/fixedpoint"
)

// Side identifies which side of the ladder a level belongs to.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// ChangeKind classifies what an Apply call did, so callers can decide
// whether a top-of-book cache or a derived quantity needs recomputing.
type ChangeKind uint8

const (
	NoOp ChangeKind = iota
	BestChanged
	DepthChanged
)

// DefaultMaxDepth is the default per-side retained level count (spec §3,
// §6 max_depth_per_side).
const DefaultMaxDepth = 100

// level is the unit stored in the btree: a price tick and its aggregated
// size. Polymarket (and this spec) is a price-aggregated book, not an
// order-list book — one level per tick per side.
type level struct {
	tick fixedpoint.PriceTick
	size fixedpoint.SizeFixed
}

// Ladder is an ordered, per-side price→size mapping with O(log n) update
// and amortized O(1) best-of-side query via a cached touch tick.
//
// The tree's less-function encodes the side's ordering directly: bids
// compare by descending tick so Min() is the highest (best) bid; asks
// compare by ascending tick so Min() is the lowest (best) ask. This mirrors
// the pattern used for price-ordered books elsewhere in the ecosystem
// (a generic BTreeG keyed by a side-specific comparator).
type Ladder struct {
	side     Side
	maxDepth int
	less     func(a, b level) bool
	tree     *btree.BTreeG[level]

	bestTick   fixedpoint.PriceTick
	hasBest    bool
	touchVer   uint64
	totalSize  fixedpoint.SizeFixed
	overflowed bool
}

// NewLadder creates an empty ladder for one side with the given max depth.
func NewLadder(side Side, maxDepth int) *Ladder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var less func(a, b level) bool
	if side == Bid {
		less = func(a, b level) bool { return a.tick > b.tick }
	} else {
		less = func(a, b level) bool { return a.tick < b.tick }
	}
	return &Ladder{
		side:     side,
		maxDepth: maxDepth,
		less:     less,
		tree:     btree.NewBTreeG(less),
	}
}

// Len returns the number of resting levels on this side.
func (l *Ladder) Len() int { return l.tree.Len() }

// TouchVersion returns the monotonic counter bumped whenever Apply changes
// the best tick on this side, for callers that want to detect whether the
// touch moved between two reads. Caller must hold the owning Book's Lock
// or RLock.
func (l *Ladder) TouchVersion() uint64 { return l.touchVer }

// Apply inserts, replaces, or removes a level. size == 0 removes the level
// (a no-op if it didn't exist); any other size inserts-or-replaces. Negative
// sizes are rejected by the caller before Apply is reached (the ladder only
// ever sees validated, non-negative magnitudes); Apply itself enforces that
// invariant defensively and returns an error rather than corrupt state.
func (l *Ladder) Apply(tick fixedpoint.PriceTick, size fixedpoint.SizeFixed) (ChangeKind, error) {
	if size < 0 {
		return NoOp, ErrNegativeSize
	}
	if size == 0 {
		return l.remove(tick), nil
	}
	return l.upsert(tick, size), nil
}

func (l *Ladder) remove(tick fixedpoint.PriceTick) ChangeKind {
	old, existed := l.tree.Delete(level{tick: tick})
	if !existed {
		return NoOp // B1: removal of a non-existent level is a no-op
	}
	l.subtractTotal(old.size)

	if l.hasBest && old.tick == l.bestTick {
		l.refreshBest()
		return BestChanged
	}
	return DepthChanged
}

func (l *Ladder) upsert(tick fixedpoint.PriceTick, size fixedpoint.SizeFixed) ChangeKind {
	old, existed := l.tree.Set(level{tick: tick, size: size})
	if existed {
		l.subtractTotal(old.size)
		l.addTotal(size)
		if l.hasBest && tick == l.bestTick {
			return NoOp // same best tick, only size moved
		}
		if l.isBetterThanBest(tick) {
			l.setBest(tick)
			return BestChanged
		}
		return DepthChanged
	}

	l.addTotal(size)
	changed := DepthChanged
	if !l.hasBest || l.isBetterThanBest(tick) {
		l.setBest(tick)
		changed = BestChanged
	}

	if l.tree.Len() > l.maxDepth {
		l.evictWorst()
	}
	return changed
}

// evictWorst drops the farthest-from-touch level once the depth cap is
// exceeded (spec B2: insertion nearer than current worst evicts the worst;
// insertion past the cap on the far side is effectively dropped because it
// immediately becomes the new worst and is evicted).
func (l *Ladder) evictWorst() {
	worst, ok := l.tree.Max()
	if !ok {
		return
	}
	l.tree.Delete(worst)
	l.subtractTotal(worst.size)
}

func (l *Ladder) isBetterThanBest(tick fixedpoint.PriceTick) bool {
	if l.side == Bid {
		return tick > l.bestTick
	}
	return tick < l.bestTick
}

func (l *Ladder) setBest(tick fixedpoint.PriceTick) {
	l.bestTick = tick
	l.hasBest = true
	l.touchVer++
}

func (l *Ladder) refreshBest() {
	min, ok := l.tree.Min()
	if !ok {
		l.hasBest = false
		l.bestTick = 0
	} else {
		l.bestTick = min.tick
	}
	l.touchVer++
}

func (l *Ladder) addTotal(size fixedpoint.SizeFixed) {
	sum := l.totalSize + size
	if sum < l.totalSize { // overflow
		l.overflowed = true
		l.totalSize = math.MaxInt64
		return
	}
	l.totalSize = sum
}

func (l *Ladder) subtractTotal(size fixedpoint.SizeFixed) {
	l.totalSize -= size
	if l.totalSize < 0 {
		l.totalSize = 0
	}
}

// Best returns the touch (best tick, its size) for this side, verified
// against the ordered container.
func (l *Ladder) Best() (fixedpoint.PriceTick, fixedpoint.SizeFixed, bool) {
	if !l.hasBest {
		return 0, 0, false
	}
	lv, ok := l.tree.Get(level{tick: l.bestTick})
	if !ok {
		// Cache desynced from the tree (should not happen); fall back to a
		// full refresh rather than return a stale value.
		l.refreshBest()
		if !l.hasBest {
			return 0, 0, false
		}
		lv, _ = l.tree.Get(level{tick: l.bestTick})
	}
	return lv.tick, lv.size, true
}

// LevelEntry is a (tick, size) pair returned by BestN.
type LevelEntry struct {
	Tick fixedpoint.PriceTick
	Size fixedpoint.SizeFixed
}

// BestN returns up to n levels starting at the touch and moving outward.
// Lazy and bounded: the walk stops as soon as n items have been yielded or
// the side is exhausted.
func (l *Ladder) BestN(n int) []LevelEntry {
	if n <= 0 {
		return nil
	}
	out := make([]LevelEntry, 0, min(n, l.tree.Len()))
	l.tree.Scan(func(lv level) bool {
		out = append(out, LevelEntry{Tick: lv.tick, Size: lv.size})
		return len(out) < n
	})
	return out
}

// TotalSize returns the sum of all resting sizes on this side, maintained
// incrementally. If an overflow was ever detected, LadderOverflow reports
// true and the running total saturates rather than wraps.
func (l *Ladder) TotalSize() fixedpoint.SizeFixed { return l.totalSize }

// LadderOverflow reports whether TotalSize has ever saturated.
func (l *Ladder) LadderOverflow() bool { return l.overflowed }

// Clear empties the side (used when a Snapshot replaces it wholesale).
func (l *Ladder) Clear() {
	l.tree = btree.NewBTreeG(l.less)
	l.hasBest = false
	l.bestTick = 0
	l.totalSize = 0
	l.overflowed = false
	l.touchVer++
}
