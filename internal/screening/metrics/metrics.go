package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening module.
type Metrics struct {
	AttemptsStarted   prometheus.Counter
	AttemptsCompleted prometheus.Counter
	AnswerDuration    prometheus.Histogram
}

// New creates a Metrics instance with all screening metrics registered.
func New() *Metrics {
	return &Metrics{
		AttemptsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_test_attempts_started_total",
			Help: "Total number of screening test attempts started",
		}),
		AttemptsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_test_attempts_completed_total",
			Help: "Total number of screening test attempts completed",
		}),
		AnswerDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowngate_submit_answer_duration_seconds",
			Help:    "Duration of SubmitAnswer operations including the score recount",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementAttemptsStarted() {
	m.AttemptsStarted.Inc()
}

func (m *Metrics) IncrementAttemptsCompleted() {
	m.AttemptsCompleted.Inc()
}

// ObserveAnswer records the duration of a SubmitAnswer operation. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveAnswer(start time.Time) {
	m.AnswerDuration.Observe(time.Since(start).Seconds())
}
