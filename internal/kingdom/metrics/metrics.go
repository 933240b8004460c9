package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the kingdom module. Enroll is the
// contended path, so it gets a duration histogram.
type Metrics struct {
	Enrollments        prometheus.Counter
	EnrollmentRejected prometheus.Counter
	EnrollDuration     prometheus.Histogram
}

// New creates a Metrics instance with all kingdom metrics registered.
func New() *Metrics {
	return &Metrics{
		Enrollments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_enrollments_total",
			Help: "Total number of successful citizen enrollments",
		}),
		EnrollmentRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_enrollments_rejected_total",
			Help: "Total number of rejected enrollment requests",
		}),
		EnrollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowngate_enroll_duration_seconds",
			Help:    "Duration of Enroll operations including the capacity lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementEnrollments() {
	m.Enrollments.Inc()
}

func (m *Metrics) IncrementEnrollmentRejected() {
	m.EnrollmentRejected.Inc()
}

// ObserveEnroll records the duration of an Enroll operation. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveEnroll(start time.Time) {
	m.EnrollDuration.Observe(time.Since(start).Seconds())
}
