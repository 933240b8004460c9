package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	UsersRegistered  prometheus.Counter
	LoginSuccess     prometheus.Counter
	LoginFailure     prometheus.Counter
	RegisterDuration prometheus.Histogram
}

// New creates a Metrics instance with all identity metrics registered.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_users_registered_total",
			Help: "Total number of users registered",
		}),
		LoginSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowngate_login_failures_total",
			Help: "Total number of failed login attempts",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowngate_register_duration_seconds",
			Help:    "Duration of Register operations",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementLoginSuccess() {
	m.LoginSuccess.Inc()
}

func (m *Metrics) IncrementLoginFailure() {
	m.LoginFailure.Inc()
}

// ObserveRegister records the duration of a Register operation. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
