// Package registry implements the Book Registry (spec §4.C): it owns every
// instrument's Book, applies updates atomically per instrument, detects and
// remediates sequence gaps, and evicts stale books.
//
// Shared-resource policy (spec §5): the instrument-id → Book map is guarded
// by a read-biased RWMutex. Writers take it only to insert a new Book or
// evict a stale one — both rare. Applying an update to an existing Book
// takes only that Book's own lock, never the map's write lock.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"polyclob/internal/book"
	"polyclob/internal/feed"
	"polyclob/pkg/fixedpoint"
)

// Outcome kinds for ApplyUpdate (spec §4.C).
type Outcome uint8

const (
	Applied Outcome = iota
	Resynced
	GapDetected
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Resynced:
		return "resynced"
	case GapDetected:
		return "gap_detected"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ApplyResult is the return value of ApplyUpdate.
type ApplyResult struct {
	Outcome      Outcome
	BookVersion  uint64 // last-applied sequence after this call, for Applied/Resynced
	Expected     uint64 // for GapDetected
	Observed     uint64 // for GapDetected
	RejectReason error  // for Rejected
}

// Errors surfaced as RejectReason or returned directly (spec §7 taxonomy).
var (
	ErrUnknownInstrument = errors.New("registry: instrument not present")
	ErrUnknownSide       = book.ErrUnknownSide
	ErrNegativeSize      = book.ErrNegativeSize
	ErrBookPoisoned      = errors.New("registry: book is poisoned")
)

// InstrumentDescriptor is what the caller must supply (out-of-band, spec
// §6) before the first update for an instrument: its tick-size domain and
// the max depth to retain per side.
type InstrumentDescriptor struct {
	Domain   fixedpoint.TickDomain
	MaxDepth int
}

// Registry owns all Books. Safe for concurrent use: a goroutine draining
// the decoded-frame channel calls ApplyUpdate while strategy goroutines
// call Get/top-of-book queries concurrently.
type Registry struct {
	mu        sync.RWMutex
	books     map[string]*book.Book
	defaults  InstrumentDescriptor
	overrides map[string]InstrumentDescriptor
	logger    *slog.Logger
	metrics   *Metrics
}

// New creates an empty registry. defaults is used for any instrument that
// hasn't had RegisterInstrument called for it (useful in tests and for
// venues with a single uniform tick size).
func New(defaults InstrumentDescriptor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		books:     make(map[string]*book.Book),
		defaults:  defaults,
		overrides: make(map[string]InstrumentDescriptor),
		logger:    logger.With("component", "registry"),
		metrics:   newMetrics(),
	}
}

// RegisterInstrument records the tick-size descriptor for an instrument
// ahead of its first update. If the instrument's Book already exists this
// only affects future lazily-created Books (an existing Book keeps the
// domain it was created with).
func (r *Registry) RegisterInstrument(instrumentID string, desc InstrumentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[instrumentID] = desc
}

// Get returns the Book for an instrument, if present.
func (r *Registry) Get(instrumentID string) (*book.Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[instrumentID]
	return b, ok
}

// descriptorFor resolves the tick domain/depth to use when lazily creating
// a Book. Called with r.mu at least read-locked by the caller's context,
// but overrides/defaults reads are cheap value copies so no extra locking
// is required here.
func (r *Registry) descriptorFor(instrumentID string) InstrumentDescriptor {
	if d, ok := r.overrides[instrumentID]; ok {
		return d
	}
	return r.defaults
}

// ApplyUpdate is the single entry point for feed updates. It is the only
// allocation-producing path in steady state, and only for (a) an
// instrument's first-ever Book, or (b) a previously-unseen tick on an
// existing ladder (spec §4.C hot-path allocation policy).
//
// b.Lock is held for the full duration of one update (spec §5: "Each
// Book's apply path holds exclusive access to that Book for the duration
// of one update"), so two concurrent updates for the same instrument —
// e.g. the feed's own delta and a gap-triggered resync racing each other —
// serialize instead of corrupting the ladder.
func (r *Registry) ApplyUpdate(u feed.UpdateRecord) ApplyResult {
	b, isNew := r.getOrCreateBook(u.InstrumentID)

	if isNew {
		r.metrics.booksTracked.Inc()
	}

	start := time.Now()
	defer func() { r.metrics.applyDuration.Observe(time.Since(start).Seconds()) }()

	b.Lock()
	defer b.Unlock()

	if b.State() == book.Poisoned {
		r.metrics.rejected.WithLabelValues("poisoned").Inc()
		return ApplyResult{Outcome: Rejected, RejectReason: fmt.Errorf("%w: %s", ErrBookPoisoned, u.InstrumentID)}
	}

	switch u.Kind {
	case feed.Snapshot:
		return r.applySnapshot(b, u)
	case feed.Delta:
		return r.applyDelta(b, u)
	default:
		r.metrics.rejected.WithLabelValues("bad_kind").Inc()
		return ApplyResult{Outcome: Rejected, RejectReason: fmt.Errorf("registry: unknown update kind %d", u.Kind)}
	}
}

func (r *Registry) getOrCreateBook(instrumentID string) (*book.Book, bool) {
	r.mu.RLock()
	b, ok := r.books[instrumentID]
	r.mu.RUnlock()
	if ok {
		return b, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[instrumentID]; ok {
		return b, false // lost the race to another writer
	}
	desc := r.descriptorFor(instrumentID)
	b = book.NewBook(instrumentID, desc.Domain, desc.MaxDepth)
	r.books[instrumentID] = b
	r.logger.Debug("instrument registered", "instrument", instrumentID)
	return b, true
}

// applySnapshot constructs the new ladder state and swaps it in as a single
// logical step: concurrent readers see either the pre- or post-snapshot
// view, never a partially populated ladder (spec §4.C atomicity).
func (r *Registry) applySnapshot(b *book.Book, u feed.UpdateRecord) ApplyResult {
	hadHistory := b.Initialized()

	b.Bids.Clear()
	b.Asks.Clear()

	for _, c := range u.Changes {
		if err := applyEntry(b, c); err != nil {
			b.Poison()
			r.metrics.rejected.WithLabelValues("invariant").Inc()
			return ApplyResult{Outcome: Rejected, RejectReason: err}
		}
	}

	b.ApplySequence(u.Sequence, u.Timestamp)
	r.metrics.applied.WithLabelValues("snapshot").Inc()
	if hadHistory {
		r.metrics.resynced.Inc()
		return ApplyResult{Outcome: Resynced, BookVersion: u.Sequence}
	}
	return ApplyResult{Outcome: Applied, BookVersion: u.Sequence}
}

// applyDelta applies an incremental change set in place, after the
// sequence-gap check (spec §4.C state machine).
func (r *Registry) applyDelta(b *book.Book, u feed.UpdateRecord) ApplyResult {
	if b.State() == book.AwaitingSnapshot {
		r.metrics.rejected.WithLabelValues("awaiting_snapshot").Inc()
		return ApplyResult{
			Outcome:  GapDetected,
			Expected: b.LastSequence() + 1,
			Observed: u.Sequence,
		}
	}

	expected := b.LastSequence() + 1
	if u.Sequence != expected {
		b.MarkAwaitingSnapshot()
		r.metrics.gaps.Inc()
		r.logger.Warn("sequence gap detected",
			"instrument", u.InstrumentID, "expected", expected, "observed", u.Sequence)
		return ApplyResult{Outcome: GapDetected, Expected: expected, Observed: u.Sequence}
	}

	for _, c := range u.Changes {
		if err := applyEntry(b, c); err != nil {
			b.Poison()
			r.metrics.rejected.WithLabelValues("invariant").Inc()
			return ApplyResult{Outcome: Rejected, RejectReason: err}
		}
	}

	b.ApplySequence(u.Sequence, u.Timestamp)
	r.metrics.applied.WithLabelValues("delta").Inc()
	return ApplyResult{Outcome: Applied, BookVersion: u.Sequence}
}

// bookIdle reads a Book's last-update timestamp under its own RLock, since
// SweepStale never holds the Book's lock itself (only the registry's map
// lock, which guards a different resource).
func bookIdle(b *book.Book, idleThreshold time.Duration, now time.Time) bool {
	b.RLock()
	defer b.RUnlock()
	return now.Sub(b.LastUpdate()) > idleThreshold
}

func applyEntry(b *book.Book, c feed.ChangeEntry) error {
	var l *book.Ladder
	switch c.Side {
	case book.Bid:
		l = b.Bids
	case book.Ask:
		l = b.Asks
	default:
		return fmt.Errorf("%w: %v", book.ErrUnknownSide, c.Side)
	}
	if _, err := l.Apply(c.Price, c.Size); err != nil {
		return err
	}
	return nil
}

// SweepStale removes every Book whose last update is older than
// idleThreshold (spec §6 stale_idle_threshold). Readers are only briefly
// blocked: candidates are collected under a shared lock, then the write
// lock is taken only for the actual removals.
func (r *Registry) SweepStale(idleThreshold time.Duration, now time.Time) int {
	r.mu.RLock()
	var stale []string
	for id, b := range r.books {
		if bookIdle(b, idleThreshold, now) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, id := range stale {
		if b, ok := r.books[id]; ok && bookIdle(b, idleThreshold, now) {
			delete(r.books, id)
			evicted++
		}
	}
	r.metrics.booksTracked.Set(float64(len(r.books)))
	r.metrics.stalenessEvicted.Add(float64(evicted))
	return evicted
}

// Domain resolves the tick-size domain for an instrument, satisfying
// feed.DomainResolver. It checks a registered descriptor first (the usual
// case, set before any update arrives) and falls back to an already-created
// Book's domain so a decoder can still resolve after the first apply even
// if RegisterInstrument was never called explicitly.
func (r *Registry) Domain(instrumentID string) (fixedpoint.TickDomain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.overrides[instrumentID]; ok {
		return d.Domain, true
	}
	if b, ok := r.books[instrumentID]; ok {
		return b.Domain, true
	}
	return fixedpoint.TickDomain{}, false
}

// MetricsCollectors exposes this registry's Prometheus collectors so a
// caller (typically the api package's /metrics handler) can register them
// with its own prometheus.Registerer.
func (r *Registry) MetricsCollectors() []prometheus.Collector {
	return r.metrics.Collectors()
}

// Len returns the number of tracked instruments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
