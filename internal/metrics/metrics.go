// Package metrics exposes Prometheus collectors for the check-in loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors. A nil *Metrics is a no-op everywhere so
// callers never need to guard.
type Metrics struct {
	attempts   *prometheus.CounterVec
	resolveDur prometheus.Histogram
	inspected  prometheus.Counter
	nextPoint  *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attbot_attempts_total",
			Help: "Check-in attempts by user and outcome.",
		}, []string{"user", "outcome"}),
		resolveDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attbot_resolve_seconds",
			Help:    "Wall time of answer resolution.",
			Buckets: prometheus.DefBuckets,
		}),
		inspected: factory.NewCounter(prometheus.CounterOpts{
			Name: "attbot_candidates_inspected_total",
			Help: "Candidate records compared against the quiz poster.",
		}),
		nextPoint: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "attbot_next_checkin_timestamp",
			Help: "Unix time of the next scheduled check-in per user.",
		}, []string{"user"}),
	}
}

// Attempt records a finished attempt.
func (m *Metrics) Attempt(user, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(user, outcome).Inc()
}

// ObserveResolve records how long an answer resolution took.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDur.Observe(d.Seconds())
}

// Inspected counts candidates compared during resolution.
func (m *Metrics) Inspected(n int) {
	if m == nil {
		return
	}
	m.inspected.Add(float64(n))
}

// NextCheckin publishes the next scheduled point for a user.
func (m *Metrics) NextCheckin(user string, at time.Time) {
	if m == nil {
		return
	}
	m.nextPoint.WithLabelValues(user).Set(float64(at.Unix()))
}
