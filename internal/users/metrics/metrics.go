package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeFallback = "fallback"

	ConflictUniqueness = "uniqueness"
	ConflictVersion    = "version"
)

// Metrics provides observability for the user directory.
// Tracks registrations, welcome notification outcomes, conflicts and operation durations.
type Metrics struct {
	Registrations     prometheus.Counter
	Notifications     *prometheus.CounterVec
	Conflicts         *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers the directory metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "usermgmt_registrations_total",
			Help: "Total number of successful user registrations",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "usermgmt_welcome_notifications_total",
			Help: "Welcome notification attempts by outcome",
		}, []string{"outcome"}),
		Conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "usermgmt_conflicts_total",
			Help: "Rejected writes by conflict kind (uniqueness, version)",
		}, []string{"kind"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usermgmt_operation_duration_seconds",
			Help:    "Duration of user directory operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementRegistrations() {
	m.Registrations.Inc()
}

func (m *Metrics) IncrementNotification(outcome string) {
	m.Notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConflict(kind string) {
	m.Conflicts.WithLabelValues(kind).Inc()
}

// ObserveOperation records the duration of a directory operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
