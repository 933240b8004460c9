package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the audit pipeline. Dropped entries are the signal to
// watch: they mean the inbox buffer is undersized for the write rate.
type Metrics struct {
	EntriesRecorded prometheus.Counter
	EntriesDropped  prometheus.Counter
}

// New creates a Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		EntriesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_audit_entries_recorded_total",
			Help: "Total number of audit entries accepted for persistence",
		}),
		EntriesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_audit_entries_dropped_total",
			Help: "Total number of audit entries dropped (invalid or inbox full)",
		}),
	}
}

func (m *Metrics) IncrementRecorded() {
	m.EntriesRecorded.Inc()
}

func (m *Metrics) IncrementDropped() {
	m.EntriesDropped.Inc()
}
