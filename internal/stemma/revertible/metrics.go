package revertible

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains the Prometheus metrics collected across all revertible
// managers that share it.
type Metrics struct {
	pinnedCommits *prometheus.CounterVec
}

// NewMetrics returns a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		pinnedCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stemma_revertibles_pinned_total",
			Help: "Number of commits pinned by revertible handles.",
		}, []string{"kind"}),
	}
}

// Describe is used to describe Prometheus metrics.
func (m *Metrics) Describe(descs chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, descs)
}

// Collect is used to collect Prometheus metrics.
func (m *Metrics) Collect(metrics chan<- prometheus.Metric) {
	m.pinnedCommits.Collect(metrics)
}

func (m *Metrics) commitPinned(kind string) {
	m.pinnedCommits.WithLabelValues(kind).Inc()
}
