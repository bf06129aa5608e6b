package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the address link manager.
type Metrics struct {
	Linked        *prometheus.CounterVec
	Unlinked      prometheus.Counter
	Rejections    *prometheus.CounterVec
	UnlinkDenials prometheus.Counter
}

// New creates and registers all link manager metrics.
func New() *Metrics {
	return &Metrics{
		Linked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juicyid_links_created_total",
			Help: "Address links created, by link type",
		}, []string{"link_type"}),
		Unlinked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juicyid_links_removed_total",
			Help: "Address links removed",
		}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juicyid_link_rejections_total",
			Help: "Link attempts rejected, by validation rule",
		}, []string{"rule"}),
		UnlinkDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juicyid_unlink_denials_total",
			Help: "Unlink attempts by a party that owns neither side of the link",
		}),
	}
}

func (m *Metrics) RecordLinked(linkType string) {
	if m == nil {
		return
	}
	m.Linked.WithLabelValues(linkType).Inc()
}

func (m *Metrics) RecordUnlinked() {
	if m == nil {
		return
	}
	m.Unlinked.Inc()
}

func (m *Metrics) RecordRejection(rule string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordUnlinkDenied() {
	if m == nil {
		return
	}
	m.UnlinkDenials.Inc()
}
