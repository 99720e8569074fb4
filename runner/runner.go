package runner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/types"
)

// ErrNilSink is returned by New when no event sink is configured.
var ErrNilSink = errors.New("runner: no event sink configured")

// Config configures a Runner.
type Config struct {
	Suites []*Suite
	Sink   reporting.Sink
	Log    zerolog.Logger
	Params Params
}

// Result is the outcome of one full run.
type Result struct {
	RunID    string
	Duration time.Duration
	Stats    types.RunStats
	Suites   []SuiteResult
}

// SuiteResult records one suite's participation in a run.
type SuiteResult struct {
	Name    string
	File    string
	Skipped bool
	Groups  []GroupResult
}

// GroupResult records how many traversal passes a group needed.
type GroupResult struct {
	Name   string
	Line   int
	Passes int
}

// Runner executes suites sequentially, sharing one traversal state
// across the whole run so the summary spans every suite.
type Runner struct {
	cfg    Config
	tracer trace.Tracer
}

// New creates a Runner. The sink is required; everything else has
// usable defaults.
func New(cfg Config) (*Runner, error) {
	if cfg.Sink == nil {
		return nil, ErrNilSink
	}
	// A targeted run with quiet output would be useless; bump it.
	if cfg.Params.Line != 0 && cfg.Params.Verbosity == types.VerbosityQuiet {
		cfg.Params.Verbosity = types.VerbosityNotes
	}
	return &Runner{
		cfg:    cfg,
		tracer: otel.Tracer("gspec/runner"),
	}, nil
}

// RunAll executes every configured suite and returns the aggregated
// result. A traversal fault aborts the run and surfaces as the error.
func (r *Runner) RunAll(ctx context.Context) (res *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if ef, ok := rec.(*EngineFault); ok {
				res, err = nil, ef
				return
			}
			panic(rec)
		}
	}()

	runID := uuid.New().String()
	log := r.cfg.Log.With().Str("run_id", runID).Logger()
	log.Info().Int("suites", len(r.cfg.Suites)).Msg("starting run")

	stats := types.RunStats{StartTime: time.Now()}
	state := newRunState(r.cfg.Params, r.cfg.Sink, log, &stats)

	result := &Result{RunID: runID}

	for _, suite := range r.cfg.Suites {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Suites = append(result.Suites, r.runSuite(ctx, state, suite))
	}

	stats.EndTime = time.Now()
	result.Stats = stats
	result.Duration = stats.EndTime.Sub(stats.StartTime)

	r.cfg.Sink.Summary(stats.Total, stats.Passed, stats.Warnings, stats.PassRate())

	log.Info().
		Int("total", stats.Total).
		Int("passed", stats.Passed).
		Int("failed", stats.Failed()).
		Int("skipped", stats.Skipped).
		Dur("duration", result.Duration).
		Msg("run complete")

	return result, nil
}

func (r *Runner) runSuite(ctx context.Context, s *runState, suite *Suite) SuiteResult {
	ctx, span := r.tracer.Start(ctx, "suite "+suite.Name,
		trace.WithAttributes(attribute.String("suite.file", suite.File)))
	defer span.End()

	res := SuiteResult{Name: suite.Name, File: suite.File}
	s.beforeSuite(suite)

	if !strings.HasSuffix(suite.File, s.params.File) {
		if s.params.Verbosity == types.VerbosityAll {
			s.sink.SkippedSuite(suite.File)
		}
		res.Skipped = true
		return res
	}

	for _, g := range suite.Groups {
		// Targeting a group's own line runs the whole group. The target
		// is restored afterwards so one group consuming it, or
		// exhausting it via a targeted context, does not bleed into the
		// next group.
		saved := s.targetLine
		if g.Line == s.targetLine {
			s.targetLine = 0
		}
		res.Groups = append(res.Groups, r.runGroup(ctx, s, g))
		s.targetLine = saved
	}

	return res
}

// runGroup drives the pass loop: invoke the body, settle the test it
// ran, and stop on the first pass that discovers nothing new.
func (r *Runner) runGroup(ctx context.Context, s *runState, g *Group) GroupResult {
	_, span := r.tracer.Start(ctx, "group "+g.Name,
		trace.WithAttributes(attribute.Int("group.line", g.Line)))
	defer span.End()

	res := GroupResult{Name: g.Name, Line: g.Line}
	s.beforeGroup(g)

	for {
		s.beforePass()
		prev := s.cursor

		s.invokeGroup(g)
		res.Passes++

		// A pass made progress if it ran a test, popped a context, or
		// moved the cursor. The cursor alone is not enough: a pop sets
		// it to the context's line+1, which can coincide with a line an
		// earlier pass already consumed.
		if !s.inProgress && !s.closedContext && prev == s.cursor {
			break
		}

		s.endTest()
	}

	s.stack.clear()
	span.SetAttributes(attribute.Int("group.passes", res.Passes))
	return res
}
