package gspec

import (
	"github.com/gspec/gspec/metrics"
	"github.com/gspec/gspec/runner"
)

// MetricsReporter is responsible for reporting metrics from run results.
type MetricsReporter interface {
	ReportResults(result *runner.Result)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the run results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(result *runner.Result) {
	metrics.RecordRun(
		result.RunID,
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed(),
		result.Stats.Skipped,
		result.Stats.Warnings,
		result.Duration.Seconds(),
	)
}
