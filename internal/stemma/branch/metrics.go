package branch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the Prometheus metrics collected across all branches that
// share it. Telemetry is collected around rebases and transactions but never
// affects their outcome.
type Metrics struct {
	commitsApplied       *prometheus.CounterVec
	transactionsFinished *prometheus.CounterVec
	rebaseDuration       *prometheus.HistogramVec
}

// NewMetrics returns a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		commitsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stemma_branch_commits_total",
			Help: "Number of commits applied to branches.",
		}, []string{"operation", "kind"}),
		transactionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stemma_branch_transactions_total",
			Help: "Number of finished branch transactions.",
		}, []string{"outcome"}),
		rebaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stemma_branch_rebase_duration_seconds",
			Help:    "Time spent replaying divergent commits during rebase and merge.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
	}
}

// Describe is used to describe Prometheus metrics.
func (m *Metrics) Describe(descs chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, descs)
}

// Collect is used to collect Prometheus metrics.
func (m *Metrics) Collect(metrics chan<- prometheus.Metric) {
	m.commitsApplied.Collect(metrics)
	m.transactionsFinished.Collect(metrics)
	m.rebaseDuration.Collect(metrics)
}

func (m *Metrics) commitApplied(operation, kind string, count int) {
	m.commitsApplied.WithLabelValues(operation, kind).Add(float64(count))
}

func (m *Metrics) transactionFinished(outcome string) {
	m.transactionsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRebase(operation string, elapsed time.Duration) {
	m.rebaseDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
