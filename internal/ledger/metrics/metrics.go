package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the engagement ledger.
type Metrics struct {
	DonationsRecorded  prometheus.Counter
	DonationsReplayed  prometheus.Counter
	DonationAmount     prometheus.Histogram
	TestimonialsAdded  prometheus.Counter
	StoriesAdded       prometheus.Counter
	ApprovalRejections *prometheus.CounterVec
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		DonationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_ledger_donations_recorded_total",
			Help: "Total number of donations recorded",
		}),
		DonationsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_ledger_donations_replayed_total",
			Help: "Total number of donation submissions answered from an idempotency key",
		}),
		DonationAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindlink_ledger_donation_amount",
			Help:    "Donation amounts in major currency units",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		}),
		TestimonialsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_ledger_testimonials_added_total",
			Help: "Total number of testimonials added",
		}),
		StoriesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_ledger_success_stories_added_total",
			Help: "Total number of success stories added",
		}),
		ApprovalRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlink_ledger_approval_gate_rejections_total",
			Help: "Ledger writes refused by the approval gate, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ObserveDonation(amountCents int64) {
	m.DonationsRecorded.Inc()
	m.DonationAmount.Observe(float64(amountCents) / 100)
}

func (m *Metrics) IncrementReplayed() {
	m.DonationsReplayed.Inc()
}

func (m *Metrics) IncrementTestimonials() {
	m.TestimonialsAdded.Inc()
}

func (m *Metrics) IncrementStories() {
	m.StoriesAdded.Inc()
}

// IncrementGateRejection records a write refused with reason not_found or not_approved.
func (m *Metrics) IncrementGateRejection(reason string) {
	m.ApprovalRejections.WithLabelValues(reason).Inc()
}
