package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the identity registry.
type Metrics struct {
	Claims     *prometheus.CounterVec
	Conflicts  prometheus.Counter
	Deletions  prometheus.Counter
	Resolution *prometheus.HistogramVec
}

// New creates and registers all identity registry metrics.
func New() *Metrics {
	return &Metrics{
		Claims: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juicyid_identity_claims_total",
			Help: "Identity claims by change type (created, updated)",
		}, []string{"change"}),
		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juicyid_identity_conflicts_total",
			Help: "Claims rejected because the emoji+username pair was taken",
		}),
		Deletions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juicyid_identity_deletions_total",
			Help: "Identities deleted by their owner",
		}),
		Resolution: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "juicyid_identity_resolution_seconds",
			Help:    "Latency of identity lookups by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// RecordClaim increments the claim counter for a change type.
func (m *Metrics) RecordClaim(change string) {
	if m == nil {
		return
	}
	m.Claims.WithLabelValues(change).Inc()
}

// RecordConflict increments the conflict counter.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

// RecordDeletion increments the deletion counter.
func (m *Metrics) RecordDeletion() {
	if m == nil {
		return
	}
	m.Deletions.Inc()
}

// ObserveResolution records a lookup latency.
func (m *Metrics) ObserveResolution(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.Resolution.WithLabelValues(kind).Observe(seconds)
}
