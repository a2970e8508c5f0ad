package callstore

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-packet admission outcomes, generalizing the
// Rejected/Published/Dropped counters in collect/metrics.go from the
// publish-queue domain to the call registry's admission pipeline.
type Metrics struct {
	Accepted  prometheus.Counter
	Dropped   prometheus.Counter
	Rotated   prometheus.Counter
	Calls     prometheus.Gauge
	Active    prometheus.Gauge
}

// NewMetrics creates a newly initialized Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstore_messages_accepted_total",
			Help: "Number of messages admitted into the call registry",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstore_messages_dropped_total",
			Help: "Number of messages dropped by admission policy or capacity",
		}),
		Rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callstore_calls_rotated_total",
			Help: "Number of calls evicted to make room for a new one",
		}),
		Calls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callstore_calls",
			Help: "Current number of calls held in the registry",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callstore_active_calls",
			Help: "Current number of calls considered active",
		}),
	}
}

// List returns m's metrics for registration with a prometheus.Registry.
func (m *Metrics) List() []prometheus.Collector {
	return []prometheus.Collector{m.Accepted, m.Dropped, m.Rotated, m.Calls, m.Active}
}
