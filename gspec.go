// Package gspec wires the pieces of the spec runner together: registry,
// traversal runner, console reporting, results table and metrics. The
// cmd package builds a Service from CLI flags; embedders can construct
// one directly.
package gspec

import (
	"context"
	"errors"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gspec/gspec/registry"
	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/runner"
	"github.com/gspec/gspec/types"
)

// Service runs registered suites once and reports the outcome.
type Service struct {
	config    *Config
	version   string
	registry  *registry.Registry
	sink      reporting.Sink
	formatter ResultFormatter
	reporter  MetricsReporter

	result *runner.Result
}

// New creates a Service. A nil registry uses the process-wide default;
// a nil sink gets a console sink on stdout.
func New(cfg *Config, version string, reg *registry.Registry) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		reg = registry.Default
	}
	return &Service{
		config:   cfg,
		version:  version,
		registry: reg,
		sink: reporting.NewConsoleSink(reporting.ConsoleSinkConfig{
			Out:     os.Stdout,
			TabSize: cfg.TabSize,
			Padding: cfg.Padding,
		}),
		formatter: NewTableResultFormatter(os.Stdout, cfg.Log),
		reporter:  NewDefaultMetricsReporter(),
	}, nil
}

// WithSink replaces the reporting sink. Must be called before Run.
func (s *Service) WithSink(sink reporting.Sink) *Service {
	s.sink = sink
	return s
}

// Run executes every registered suite. It returns a TestFailureError
// when tests fail and a RuntimeError when the run itself breaks, so
// callers can map outcomes to exit codes.
func (s *Service) Run(ctx context.Context) error {
	log := s.config.Log
	log.Info().Str("version", s.version).Msg("gspec starting")

	if s.config.List {
		return s.listSuites()
	}

	r, err := runner.New(runner.Config{
		Suites: s.registry.Suites(),
		Sink:   s.sink,
		Log:    log,
		Params: runner.Params{
			File:           s.config.File,
			Line:           s.config.Line,
			Verbosity:      s.config.Verbosity,
			TabSize:        s.config.TabSize,
			Padding:        s.config.Padding,
			ForceFails:     s.config.ForceFails,
			NoMemCheck:     s.config.IgnoreMemory,
			ShowTypes:      s.config.ShowTypes,
			MaxDepth:       s.config.MaxDepth,
			MemoryCapacity: s.config.MemoryCapacity,
		},
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	result, err := r.RunAll(ctx)
	if err != nil {
		return NewRuntimeError(err)
	}
	s.result = result

	s.reporter.ReportResults(result)

	if s.config.Verbosity >= types.VerbosityRun {
		if err := s.formatter.FormatResults(result); err != nil {
			log.Error().Err(err).Msg("failed to format results")
		}
	}

	if failed := result.Stats.Failed(); failed > 0 {
		return NewTestFailureError(
			pluralize(failed, "test failed", "tests failed"))
	}
	return nil
}

// Result returns the outcome of the last Run.
func (s *Service) Result() *runner.Result {
	return s.result
}

// listSuites prints the registered suites without running anything.
func (s *Service) listSuites() error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Suite", "File", "Group", "Line"})
	for _, suite := range s.registry.Suites() {
		for _, g := range suite.Groups {
			t.AppendRow(table.Row{suite.Name, suite.File, g.Name, g.Line})
		}
	}
	t.Render()
	return nil
}
