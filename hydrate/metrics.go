package hydrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hydration outcomes used as metric labels.
const (
	OutcomeFresh    = "fresh"
	OutcomeFallback = "fallback"
	OutcomeLiteral  = "literal"
)

// Metrics holds hydration counters.
type Metrics struct {
	hydrations *prometheus.CounterVec
	attempts   prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics creates and registers hydration metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semprofile",
			Name:      "hydrations_total",
			Help:      "Allowed-item list hydrations by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "semprofile",
			Name:      "hydration_query_attempts_total",
			Help:      "External query attempts issued during hydration.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semprofile",
			Name:      "hydration_duration_seconds",
			Help:      "Wall time of a hydration including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hydrations, m.attempts, m.duration)
	}
	return m
}

func (m *Metrics) observe(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.hydrations.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) attempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}
