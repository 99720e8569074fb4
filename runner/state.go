package runner

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gspec/gspec/metrics"
	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/sandbox"
	"github.com/gspec/gspec/types"
)

// Params holds the knobs that shape a run.
type Params struct {
	// File limits the run to suites whose filename ends with this.
	File string
	// Line targets one test, context or group by declaration line.
	Line int

	Verbosity  types.Verbosity
	TabSize    int
	Padding    bool
	ForceFails bool // run expected-failure tests as regular tests
	NoMemCheck bool
	ShowTypes  bool

	// MaxDepth caps context nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// MemoryCapacity sizes the sandbox arena. Zero means the sandbox
	// default.
	MemoryCapacity int
}

// DefaultMaxDepth is the context nesting limit when none is configured.
const DefaultMaxDepth = 20

type printLevel int

const (
	notPrinted printLevel = iota
	logged
	printed
)

// passComplete unwinds the group body when a pass closes a context,
// mirroring an early return from the body. Recovered at the invocation
// boundary; one context closes per pass at most.
type passComplete struct{}

// EngineFault reports a broken traversal, such as closing a context
// that was never opened. It aborts the run rather than the test.
type EngineFault struct {
	Line int
	Msg  string
}

func (e *EngineFault) Error() string {
	return fmt.Sprintf("traversal fault at line %d: %s", e.Line, e.Msg)
}

// runState is the mutable heart of a run: the traversal cursor, the
// context stack, per-test flags and the print-dedup bookkeeping. One
// value per run; group bodies reach it through T.
type runState struct {
	params   Params
	memCheck bool
	sink     reporting.Sink
	log      zerolog.Logger
	stats    *types.RunStats
	mem      *sandbox.Sandbox

	suite *Suite
	group *Group
	stack *contextStack

	// targetLine narrows the run to one declaration line. Zero runs
	// everything; -1 means the target was found and is now exhausted.
	targetLine int

	// cursor is the source line of the last unit the traversal
	// consumed. It only moves forward within a group, which is what
	// makes each pass discover exactly one new unit.
	cursor int

	testLine    int
	desc        string
	descPrinted printLevel

	filePrinted  bool
	groupPrinted bool

	inProgress bool
	failed     bool
	warned     bool
	expectFail bool
	skip       bool
	designErr  bool

	// closedContext marks that this pass popped a context. A pop is
	// progress even when the cursor lands on an already-consumed line,
	// so the pass loop must not treat such a pass as empty.
	closedContext bool
}

func newRunState(p Params, sink reporting.Sink, log zerolog.Logger, stats *types.RunStats) *runState {
	if p.TabSize <= 0 {
		p.TabSize = 2
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = DefaultMaxDepth
	}
	s := &runState{
		params:     p,
		memCheck:   !p.NoMemCheck,
		sink:       sink,
		log:        log,
		stats:      stats,
		stack:      newContextStack(),
		targetLine: p.Line,
	}
	s.mem = sandbox.New(sandbox.Config{
		Capacity: p.MemoryCapacity,
		Log:      log,
		Hooks: sandbox.Hooks{
			Active: func() bool { return s.inProgress },
			Fault:  s.memFault,
			Dump:   s.sink.MemoryDump,
		},
	})
	return s
}

func (s *runState) beforeSuite(suite *Suite) {
	s.suite = suite
	s.filePrinted = false
}

func (s *runState) beforeGroup(g *Group) {
	s.group = g
	s.groupPrinted = false
	s.cursor = 0
	// A memory directive used while the sandbox is disabled skips the
	// rest of the group, so the flag outlives individual passes.
	s.skip = false
}

func (s *runState) beforePass() {
	s.stack.rewind()
	s.expectFail = false
	s.failed = false
	s.warned = false
	s.designErr = false
	s.closedContext = false
	s.mem.Reset(s.memCheck)
}

// invokeGroup runs one pass of the group body, absorbing the sentinel
// that ends a pass early when a context closes.
func (s *runState) invokeGroup(g *Group) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(passComplete); ok {
				return
			}
			panic(r)
		}
	}()
	g.Fn(&T{s: s})
}

// printHeaders lazily emits the header chain above the next event: the
// suite file, the group, any context frames not yet shown, and the test
// description. The description reprints when a higher print level asks
// for it, so a test whose title was logged in passing still shows up in
// red above its failure. Returns the indent level for the event itself.
func (s *runState) printHeaders(kind reporting.Kind, level printLevel, note string) int {
	if !s.filePrinted {
		s.sink.SuiteHeader(s.suite.File)
		s.filePrinted = true
	}
	if !s.groupPrinted {
		s.sink.GroupHeader(s.group.Line, s.group.Name)
		s.groupPrinted = true
	}

	indent := 2
	for i := 1; i <= s.stack.top; i++ {
		f := &s.stack.frames[i]
		if !f.printed {
			s.sink.ContextHeader(indent, f.line, f.desc)
			f.printed = true
		}
		indent++
	}

	if s.descPrinted < level {
		if !s.inProgress {
			s.sink.PreTest(indent)
			s.descPrinted = printed
		} else {
			s.sink.TestHeader(indent, fmt.Sprintf("[%d] %s", s.testLine, s.desc), kind, note)
			s.descPrinted = level
		}
	}

	return indent + 1
}

// logNote prints a note the first time the traversal reaches its line.
// On later passes the cursor has moved past it and the note is silent.
func (s *runState) logNote(line int, msg string) {
	if (s.cursor != 0 && s.cursor >= line) || s.params.Verbosity < types.VerbosityNotes {
		return
	}
	level := s.printHeaders(reporting.KindLog, logged, "")
	s.sink.Log(level, line, msg)
}

func (s *runState) logMemory(line int, p sandbox.Ptr) {
	if (s.cursor != 0 && s.cursor >= line) || s.params.Verbosity < types.VerbosityNotes {
		return
	}
	level := s.printHeaders(reporting.KindLog, logged, "")
	s.mem.LogBlock(level, p)
}

// warn prints regardless of verbosity, once per traversal like logNote.
// Only the first warning of a test counts toward the run tally.
func (s *runState) warn(line int, msg string) {
	if s.cursor != 0 && s.cursor > line {
		return
	}
	level := s.printHeaders(reporting.KindLog, logged, "")
	s.sink.Warning(level, line, msg, s.warned)
	if !s.warned {
		s.stats.Warnings++
	}
	s.warned = true
}

// fail records a test failure. Outside a test it is a no-op; inside a
// test expecting failure the record is kept but nothing prints.
func (s *runState) fail(line int, msg string, detail ...string) {
	if !s.inProgress {
		return
	}
	s.failed = true
	if s.expectFail {
		return
	}
	level := s.printHeaders(reporting.KindFail, printed, "")
	s.sink.Failure(level, line, msg, detail)
}

// designError flags a malformed test. Unlike fail it is never masked by
// an expected-failure declaration: a broken test must not pass.
func (s *runState) designError(line int, msg string) {
	if !s.inProgress {
		return
	}
	s.failed = true
	s.designErr = true
	level := s.printHeaders(reporting.KindFail, printed, "")
	s.sink.Failure(level, line, msg, nil)
}

// memFault receives detected sandbox faults. Returns the indent level
// used, so the sandbox can align a follow-up dump under the message.
func (s *runState) memFault(kind sandbox.FaultKind, msg string, expected bool) int {
	metrics.RecordMemoryFault(string(kind))
	s.log.Debug().Str("kind", string(kind)).Str("msg", msg).Msg("memory fault")
	if expected {
		return 0
	}
	level := s.printHeaders(reporting.KindFail, printed, "")
	s.sink.MemoryError(level, msg)
	return level
}

func (s *runState) expectToFail() {
	if !s.params.ForceFails {
		s.expectFail = true
	}
}

// memDirectiveWarning handles memory directives used while the sandbox
// is disabled: warn, expect the resulting failure, and skip whatever
// tests follow in this pass.
func (s *runState) memDirectiveWarning(line int) bool {
	if s.memCheck {
		return false
	}
	s.warn(line, "expecting memory errors, but memory testing is disabled")
	s.expectFail = true
	s.skip = true
	return true
}

func (s *runState) expectMemoryFaults(line int) {
	if s.memDirectiveWarning(line) {
		if s.inProgress {
			s.failed = true
		}
		return
	}
	if !s.params.ForceFails {
		s.mem.SetExpectFaults()
	}
}

func (s *runState) failAllocs(line int, once bool) {
	if s.memDirectiveWarning(line) {
		if s.inProgress {
			s.failed = true
		}
		return
	}
	if once {
		s.mem.FailNext()
	} else {
		s.mem.FailAll()
	}
}

func (s *runState) allocCount(line int, allocs bool) int {
	if s.memDirectiveWarning(line) {
		return -1
	}
	if allocs {
		return s.mem.AllocCount()
	}
	return s.mem.FreeCount()
}
