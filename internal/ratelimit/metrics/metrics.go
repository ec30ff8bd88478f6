package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitRejections *prometheus.CounterVec
	RateLimitErrors     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RateLimitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlink_ratelimit_rejections_total",
			Help: "Total number of requests rejected by rate limiting, by endpoint class",
		}, []string{"class"}),
		RateLimitErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindlink_ratelimit_store_errors_total",
			Help: "Total number of rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) IncrementRejections(class string) {
	m.RateLimitRejections.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementErrors() {
	m.RateLimitErrors.Inc()
}
