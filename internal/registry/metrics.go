package registry

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the shape other orderbook managers in the ecosystem
// expose (update counts, gap counts, an apply-latency histogram, a
// tracked-instrument gauge) rather than inventing a bespoke
// scheme. Each Registry gets its own unregistered collectors so tests don't
// collide on the default prometheus.Registerer.
type Metrics struct {
	applied          *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	gaps             prometheus.Counter
	resynced         prometheus.Counter
	booksTracked     prometheus.Gauge
	stalenessEvicted prometheus.Counter
	applyDuration    prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyclob_registry_applied_total",
			Help: "Updates successfully applied, by kind (snapshot|delta).",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyclob_registry_rejected_total",
			Help: "Updates rejected, by reason.",
		}, []string{"reason"}),
		gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyclob_registry_sequence_gaps_total",
			Help: "Sequence gaps detected across all instruments.",
		}),
		resynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyclob_registry_resynced_total",
			Help: "Snapshots that replaced a diverged (already-Live) book.",
		}),
		booksTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyclob_registry_books_tracked",
			Help: "Instruments currently tracked by the registry.",
		}),
		stalenessEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyclob_registry_stale_evicted_total",
			Help: "Books evicted by the staleness sweep.",
		}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyclob_registry_apply_duration_seconds",
			Help:    "Latency of a single ApplyUpdate call.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// Collectors returns every collector so callers can register them with
// their own prometheus.Registerer (e.g. the dashboard's /metrics handler).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.applied, m.rejected, m.gaps, m.resynced, m.booksTracked, m.stalenessEvicted, m.applyDuration,
	}
}
