package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provider registry.
// Tracks lifecycle transitions and the duration of the approval gate.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	ApplicationsDecided   *prometheus.CounterVec
	ApplicationsDeleted   prometheus.Counter
	ApprovalCheckDuration prometheus.Histogram
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_provider_applications_submitted_total",
			Help: "Total number of provider applications submitted",
		}),
		ApplicationsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlink_provider_applications_decided_total",
			Help: "Total number of provider applications approved or rejected",
		}, []string{"decision"}),
		ApplicationsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_provider_applications_deleted_total",
			Help: "Total number of provider records deleted",
		}),
		ApprovalCheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindlink_provider_approval_check_duration_seconds",
			Help:    "Duration of approval gate lookups made by the engagement ledger",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	m.ApplicationsSubmitted.Inc()
}

// IncrementDecided records an approval or rejection.
func (m *Metrics) IncrementDecided(decision string) {
	m.ApplicationsDecided.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.ApplicationsDeleted.Inc()
}

// ObserveApprovalCheck records the duration of an approval gate lookup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApprovalCheck(start time.Time) {
	m.ApprovalCheckDuration.Observe(time.Since(start).Seconds())
}
