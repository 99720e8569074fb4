// Package metrics exposes Prometheus metrics for test runs. Metrics are
// registered on the default registerer; serving them is the caller's
// concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gspec"

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of test runs, by outcome",
		},
		[]string{"outcome"},
	)

	testsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_total",
			Help:      "Number of tests in the most recent run",
		},
		[]string{"run_id"},
	)

	testsPassed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_passed",
			Help:      "Number of passing tests in the most recent run",
		},
		[]string{"run_id"},
	)

	testsFailed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_failed",
			Help:      "Number of failing tests in the most recent run",
		},
		[]string{"run_id"},
	)

	testsSkipped = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_skipped",
			Help:      "Number of skipped tests in the most recent run",
		},
		[]string{"run_id"},
	)

	warningsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Number of warnings emitted in the most recent run",
		},
		[]string{"run_id"},
	)

	runDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the most recent run",
		},
		[]string{"run_id"},
	)

	memoryFaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_faults_total",
			Help:      "Memory sandbox faults detected, by kind",
		},
		[]string{"kind"},
	)
)

// RecordRun publishes the aggregate outcome of one run.
func RecordRun(runID string, total, passed, failed, skipped, warnings int, durationSeconds float64) {
	outcome := "pass"
	if failed > 0 {
		outcome = "fail"
	}
	runsTotal.WithLabelValues(outcome).Inc()
	testsTotal.WithLabelValues(runID).Set(float64(total))
	testsPassed.WithLabelValues(runID).Set(float64(passed))
	testsFailed.WithLabelValues(runID).Set(float64(failed))
	testsSkipped.WithLabelValues(runID).Set(float64(skipped))
	warningsTotal.WithLabelValues(runID).Set(float64(warnings))
	runDurationSeconds.WithLabelValues(runID).Set(durationSeconds)
}

// RecordMemoryFault counts one detected sandbox fault.
func RecordMemoryFault(kind string) {
	memoryFaultsTotal.WithLabelValues(kind).Inc()
}
