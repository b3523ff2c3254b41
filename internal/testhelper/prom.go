package testhelper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	prom_model "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

// RequirePromMetrics is a test helper function that verifies if the provided
// Prometheus collector produces the expected metrics. The expected metrics
// are given as a string in Prometheus exposition format. If a list of
// specific metrics is provided, only those metrics will be checked, and any
// others will be ignored.
func RequirePromMetrics(t *testing.T, c prometheus.Collector, expected string, metrics ...string) {
	require.NoError(t, ComparePromMetrics(t, c, expected, metrics...))
}

// ComparePromMetrics is a variant of RequirePromMetrics. It returns an error
// if the actual collected metrics don't match the expected ones.
func ComparePromMetrics(t *testing.T, c prometheus.Collector, expected string, metrics ...string) error {
	var parser expfmt.TextParser

	if len(metrics) == 0 {
		family, err := parser.TextToMetricFamilies(strings.NewReader(expected))
		require.NoErrorf(t, err, "fail to parse expected prometheus metrics: %s", err)

		metrics = maps.Keys(family)
	}

	return testutil.CollectAndCompare(c, strings.NewReader(expected), metrics...)
}

// RequireHistogramSampleCounts ensures the provided Prometheus collector
// matches the expected sample counts of histogram metrics. Histograms mostly
// record elapsed time, which cannot be asserted exactly; sample counts can.
func RequireHistogramSampleCounts(t *testing.T, c prometheus.Collector, expected map[string]int) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	promMetrics, err := reg.Gather()
	require.NoError(t, err)

	actual := map[string]int{}
	for _, actualFamily := range promMetrics {
		if actualFamily.GetType() != prom_model.MetricType_HISTOGRAM {
			continue
		}

		for _, actualMetric := range actualFamily.GetMetric() {
			var labels []string
			for _, actualLabel := range actualMetric.GetLabel() {
				labels = append(labels, actualLabel.GetName()+"="+actualLabel.GetValue())
			}
			value := int(actualMetric.GetHistogram().GetSampleCount())
			if len(labels) == 0 {
				actual[actualFamily.GetName()] = value
			} else {
				actual[fmt.Sprintf("%s{%s}", actualFamily.GetName(), strings.Join(labels, ","))] = value
			}
		}
	}

	require.Equal(t, expected, actual)
}
