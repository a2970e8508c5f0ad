package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains Prometheus metrics about the ingest queue, grounded on
// collect.Metrics.
type Metrics struct {
	QueueDropped prometheus.Counter
}

// NewMetrics creates a newly initialized Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_queue_dropped_total",
			Help: "Number of packets dropped due to a full ingest queue",
		}),
	}
}

// List the items contained within a Metrics so they can be exposed via a
// prometheus.Registry.
func (m *Metrics) List() []prometheus.Collector {
	return []prometheus.Collector{m.QueueDropped}
}
