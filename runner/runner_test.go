package runner

import (
	"context"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/types"
)

func thisLine() int {
	_, _, line, _ := runtime.Caller(1)
	return line
}

func runWith(t *testing.T, p Params, suites ...*Suite) (*Result, *reporting.Recorder) {
	t.Helper()
	rec := reporting.NewRecorder()
	r, err := New(Config{Suites: suites, Sink: rec, Log: zerolog.Nop(), Params: p})
	require.NoError(t, err)
	res, err := r.RunAll(context.Background())
	require.NoError(t, err)
	return res, rec
}

func TestSiblingTestsRunInSeparatePasses(t *testing.T) {
	var order []string
	invocations := 0

	g := NewGroup("siblings", func(tt *T) {
		invocations++
		tt.It("runs a", func() { order = append(order, "a") })
		tt.It("runs b", func() { order = append(order, "b") })
		tt.It("runs c", func() { order = append(order, "c") })
	})
	suite := NewSuite("traversal", g)

	res, _ := runWith(t, Params{}, suite)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 4, invocations, "three discovery passes plus one empty pass")
	assert.Equal(t, 4, res.Suites[0].Groups[0].Passes)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 3, res.Stats.Passed)
}

func TestTestsAreIsolatedByReexecution(t *testing.T) {
	var seen []int

	g := NewGroup("isolation", func(tt *T) {
		count := 0
		tt.Context("shared setup", func() {
			count++
			tt.It("sees the setup once", func() { seen = append(seen, count) })
			tt.It("sees it once too", func() { seen = append(seen, count) })
		})
	})

	runWith(t, Params{}, NewSuite("iso", g))

	assert.Equal(t, []int{1, 1}, seen, "context setup reruns from scratch for each test")
}

func TestNestedContextsCloseOnePerPass(t *testing.T) {
	ran := 0

	g := NewGroup("nesting", func(tt *T) {
		tt.Context("outer", func() {
			tt.Context("inner", func() {
				tt.It("runs", func() { ran++ })
			})
		})
	})

	res, _ := runWith(t, Params{}, NewSuite("nested", g))

	assert.Equal(t, 1, ran)
	// one pass for the test, one to close each context, one to terminate
	assert.Equal(t, 4, res.Suites[0].Groups[0].Passes)
	assert.Equal(t, 1, res.Stats.Passed)
}

func TestSiblingAfterNestedContextsStillRuns(t *testing.T) {
	var ran []string

	// The test sits on the line directly after its context opens, so
	// closing the context leaves the cursor on a line the test's pass
	// already consumed. The group must keep passing until the outer
	// context closes and the trailing sibling runs.
	g := NewGroup("tight", func(tt *T) {
		tt.Context("outer", func() {
			tt.Context("inner", func() {
				tt.It("first", func() { ran = append(ran, "first") })
			})
		})
		tt.It("last", func() { ran = append(ran, "last") })
	})

	res, _ := runWith(t, Params{}, NewSuite("tight", g))

	assert.Equal(t, []string{"first", "last"}, ran)
	assert.Equal(t, 2, res.Stats.Passed)
}

func TestStatementsAfterTestRunOnItsPass(t *testing.T) {
	var order []string

	g := NewGroup("after", func(tt *T) {
		tt.Context("setup", func() {
			order = append(order, "setup")
			tt.It("first", func() { order = append(order, "first") })
			tt.After(func() { order = append(order, "cleanup") })
		})
	})

	runWith(t, Params{}, NewSuite("afters", g))

	// setup runs on the test pass and again on the closing pass; the
	// cleanup only runs while a test is in progress.
	assert.Equal(t, []string{"setup", "first", "cleanup", "setup"}, order)
}

func TestTargetedLineRunsOneTest(t *testing.T) {
	var ran []string
	var target int

	build := func() *Suite {
		g := NewGroup("targeting", func(tt *T) {
			tt.It("a", func() { ran = append(ran, "a") })
			target = thisLine(); tt.It("b", func() { ran = append(ran, "b") })
			tt.It("c", func() { ran = append(ran, "c") })
		})
		return NewSuite("targeted", g)
	}

	// First run untargeted to record the declaration line.
	runWith(t, Params{}, build())
	require.Equal(t, []string{"a", "b", "c"}, ran)

	ran = nil
	res, _ := runWith(t, Params{Line: target}, build())

	assert.Equal(t, []string{"b"}, ran)
	assert.Equal(t, 1, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Passed)
}

func TestTargetedContextRunsItsTestsThenStops(t *testing.T) {
	var ran []string
	var target int

	build := func() *Suite {
		g := NewGroup("ctx-target", func(tt *T) {
			tt.It("before", func() { ran = append(ran, "before") })
			target = thisLine(); tt.Context("wanted", func() {
				tt.It("inside a", func() { ran = append(ran, "inside a") })
				tt.It("inside b", func() { ran = append(ran, "inside b") })
			})
			tt.It("outside", func() { ran = append(ran, "outside") })
		})
		return NewSuite("ctx", g)
	}

	runWith(t, Params{}, build())
	require.Equal(t, []string{"before", "inside a", "inside b", "outside"}, ran)

	ran = nil
	res, _ := runWith(t, Params{Line: target}, build())

	assert.Equal(t, []string{"inside a", "inside b"}, ran)
	assert.Equal(t, 2, res.Stats.Passed)
}

func TestGroupLineTargetRunsWholeGroup(t *testing.T) {
	var ran []string

	g := NewGroup("whole", func(tt *T) {
		tt.It("a", func() { ran = append(ran, "a") })
		tt.It("b", func() { ran = append(ran, "b") })
	})

	res, _ := runWith(t, Params{Line: g.Line}, NewSuite("group-target", g))

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, 2, res.Stats.Passed)
}

func TestExpectToFailInvertsOutcome(t *testing.T) {
	g := NewGroup("inversion", func(tt *T) {
		tt.It("fails successfully", func() {
			tt.ExpectToFail()
			tt.Fail("intended breakage")
		})
	})

	res, rec := runWith(t, Params{Verbosity: types.VerbosityRun}, NewSuite("inv", g))

	assert.Equal(t, 1, res.Stats.Passed)
	assert.True(t, rec.Contains("(failed successfully)"))
	assert.False(t, rec.Contains("intended breakage"), "an expected failure stays quiet")
}

func TestExpectToFailButSucceeded(t *testing.T) {
	g := NewGroup("inversion", func(tt *T) {
		tt.It("does not fail", func() {
			tt.ExpectToFail()
		})
	})

	res, rec := runWith(t, Params{}, NewSuite("inv", g))

	assert.Equal(t, 1, res.Stats.Failed())
	assert.True(t, rec.Contains("expected to fail, but succeeded instead"))
}

func TestForceFailsDisablesInversion(t *testing.T) {
	g := NewGroup("forced", func(tt *T) {
		tt.It("fails loudly", func() {
			tt.ExpectToFail()
			tt.Fail("now visible")
		})
	})

	res, rec := runWith(t, Params{ForceFails: true}, NewSuite("forced", g))

	assert.Equal(t, 1, res.Stats.Failed())
	assert.True(t, rec.Contains("now visible"))
}

func TestLeakedAllocationFailsTest(t *testing.T) {
	g := NewGroup("leaky", func(tt *T) {
		tt.It("allocates and forgets", func() {
			tt.Alloc(16)
		})
	})

	res, rec := runWith(t, Params{}, NewSuite("leak", g))

	assert.Equal(t, 1, res.Stats.Failed())
	assert.True(t, rec.Contains("allocated memory not freed"))
	assert.True(t, rec.Contains("dump"), "a leak dumps the offending block")
}

func TestExpectedMemoryFaultsPass(t *testing.T) {
	g := NewGroup("leaky", func(tt *T) {
		tt.It("leaks on purpose", func() {
			tt.ExpectMemoryFaults()
			tt.Alloc(16)
		})
	})

	res, rec := runWith(t, Params{Verbosity: types.VerbosityRun}, NewSuite("leak", g))

	assert.Equal(t, 1, res.Stats.Passed)
	assert.False(t, rec.Contains("memory error"))
	assert.True(t, rec.Contains("(failed successfully)"))
}

func TestExpectedMemoryFaultsButCleanFails(t *testing.T) {
	g := NewGroup("clean", func(tt *T) {
		tt.It("expects faults that never come", func() {
			tt.ExpectMemoryFaults()
			p := tt.Alloc(8)
			tt.Free(p)
		})
	})

	res, rec := runWith(t, Params{}, NewSuite("clean", g))

	assert.Equal(t, 1, res.Stats.Failed())
	assert.True(t, rec.Contains("expected memory errors, but none were found"))
}

func TestForcedAllocationFailure(t *testing.T) {
	g := NewGroup("oom", func(tt *T) {
		tt.It("survives a failed allocation", func() {
			tt.FailNextAlloc()
			p := tt.Alloc(8)
			tt.Expect(p == 0, "allocation to fail")
		})
	})

	res, _ := runWith(t, Params{}, NewSuite("oom", g))

	assert.Equal(t, 1, res.Stats.Passed)
}

func TestForcedFailureNeverTriggeredIsDesignError(t *testing.T) {
	g := NewGroup("oom", func(tt *T) {
		tt.It("arms a failure it never uses", func() {
			tt.FailNextAlloc()
		})
	})

	res, rec := runWith(t, Params{}, NewSuite("oom", g))

	assert.Equal(t, 1, res.Stats.Failed())
	assert.True(t, rec.Contains("forced allocation failure requested"))
}

func TestMemoryDirectivesWithSandboxDisabled(t *testing.T) {
	var ran []string

	g := NewGroup("nomem", func(tt *T) {
		tt.It("uses a memory directive", func() {
			ran = append(ran, "directive")
			tt.ExpectMemoryFaults()
		})
		tt.It("comes after", func() { ran = append(ran, "after") })
	})
	next := NewGroup("clean", func(tt *T) {
		tt.It("runs normally", func() { ran = append(ran, "next group") })
	})

	res, rec := runWith(t, Params{NoMemCheck: true}, NewSuite("nomem", g, next))

	assert.Equal(t, []string{"directive", "next group"}, ran,
		"tests after the directive are skipped for the rest of the group")
	assert.Equal(t, 2, res.Stats.Passed, "the directive test passes as an expected failure")
	assert.Equal(t, 1, res.Stats.Skipped)
	assert.True(t, rec.Contains("memory testing is disabled"))
}

func TestContextDepthLimit(t *testing.T) {
	ran := false

	g := NewGroup("deep", func(tt *T) {
		tt.Context("one", func() {
			tt.Context("two", func() {
				tt.Context("three", func() {
					tt.It("unreachable", func() { ran = true })
				})
			})
		})
	})

	res, rec := runWith(t, Params{MaxDepth: 3}, NewSuite("deep", g))

	assert.False(t, ran)
	assert.Zero(t, res.Stats.Total)
	assert.True(t, rec.Contains("too many nested contexts"))
	assert.Greater(t, res.Stats.Warnings, 0)
}

func TestWarningsCountOncePerTest(t *testing.T) {
	g := NewGroup("warny", func(tt *T) {
		tt.It("warns twice", func() {
			tt.Warn("first notice")
			tt.Warn("second notice")
		})
		tt.It("warns once", func() {
			tt.Warn("another notice")
		})
	})

	res, rec := runWith(t, Params{}, NewSuite("warnings", g))

	assert.Equal(t, 2, res.Stats.Warnings)
	assert.Equal(t, 3, rec.Count("warn("), "every warning still prints")
}

func TestNotesPrintOncePerGroup(t *testing.T) {
	g := NewGroup("noted", func(tt *T) {
		tt.Log("group setup happening")
		tt.It("a", func() {})
		tt.It("b", func() {})
	})

	_, rec := runWith(t, Params{Verbosity: types.VerbosityNotes}, NewSuite("notes", g))

	assert.Equal(t, 1, rec.Count("group setup happening"),
		"the note is silent once the cursor passes it")
	assert.Equal(t, 1, rec.Count("pre-test"))
}

func TestNotesAreQuietByDefault(t *testing.T) {
	g := NewGroup("noted", func(tt *T) {
		tt.Log("should not appear")
		tt.It("a", func() {})
	})

	_, rec := runWith(t, Params{}, NewSuite("notes", g))

	assert.False(t, rec.Contains("should not appear"))
}

func TestSuiteFilenameFilter(t *testing.T) {
	var ran []string

	alpha := &Suite{Name: "alpha", File: "alpha_spec.go", Groups: []*Group{
		NewGroup("a", func(tt *T) {
			tt.It("runs", func() { ran = append(ran, "alpha") })
		}),
	}}
	beta := &Suite{Name: "beta", File: "beta_spec.go", Groups: []*Group{
		NewGroup("b", func(tt *T) {
			tt.It("runs", func() { ran = append(ran, "beta") })
		}),
	}}

	res, rec := runWith(t, Params{File: "beta_spec.go", Verbosity: types.VerbosityAll}, alpha, beta)

	assert.Equal(t, []string{"beta"}, ran)
	assert.True(t, res.Suites[0].Skipped)
	assert.False(t, res.Suites[1].Skipped)
	assert.True(t, rec.Contains("skip-suite alpha_spec.go"))
}

func TestSummaryEvent(t *testing.T) {
	g := NewGroup("sums", func(tt *T) {
		tt.It("passes", func() {})
		tt.It("fails", func() { tt.Fail("broken") })
	})

	res, rec := runWith(t, Params{}, NewSuite("summary", g))

	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Passed)
	assert.Equal(t, 50, res.Stats.PassRate())
	assert.True(t, rec.Contains("summary 1/2"))
	assert.NotEmpty(t, res.RunID)
}

func TestNilSinkRejected(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilSink)
}

func TestCancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGroup("never", func(tt *T) {
		tt.It("does not run", func() { t.Fatal("ran despite cancellation") })
	})
	r, err := New(Config{Suites: []*Suite{NewSuite("cancel", g)}, Sink: reporting.NewRecorder(), Log: zerolog.Nop()})
	require.NoError(t, err)

	_, err = r.RunAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
