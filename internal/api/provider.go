package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"polyclob/internal/book"
)

// Provider is what the query surface needs from the Book Registry. It is
// a narrow interface so handlers can be tested against a fake without
// pulling in registry's metrics/sync machinery.
type Provider interface {
	Get(instrumentID string) (*book.Book, bool)
	Len() int
}

// MetricsSource is an optional capability a Provider may implement to
// expose Prometheus collectors over /metrics. A fake test Provider can
// leave it unimplemented; the real registry.Registry implements it.
type MetricsSource interface {
	MetricsCollectors() []prometheus.Collector
}
