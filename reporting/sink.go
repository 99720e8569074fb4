// Package reporting defines the structured event sink the run
// coordinator and traversal engine emit into, plus a console
// implementation. Rendering decisions (colors, indentation, padding)
// live here; what gets emitted and when is the engine's business.
package reporting

// Kind classifies a test-header event so the sink can choose its
// rendering.
type Kind int

const (
	KindFail Kind = iota
	KindPass
	KindSkip
	KindLog
)

// Sink receives structured events from a run. Headers are emitted
// lazily, at most once per suite, group, open context and test, right
// before the first event that needs them.
type Sink interface {
	// SuiteHeader announces the suite's source file.
	SuiteHeader(file string)
	// SkippedSuite announces a suite excluded by the filename filter.
	SkippedSuite(file string)
	// GroupHeader announces a group with its declaration position.
	GroupHeader(line int, name string)
	// ContextHeader announces an open context at the given depth.
	ContextHeader(level, line int, desc string)
	// TestHeader announces the current test. The note, when non-empty,
	// is appended to the description (e.g. "(failed successfully)").
	TestHeader(level int, desc string, kind Kind, note string)
	// PreTest marks output produced before any test ran this pass.
	PreTest(level int)
	// Failure reports a logical assertion failure. Detail lines are
	// aligned under the message.
	Failure(level, line int, msg string, detail []string)
	// MemoryError reports a detected memory fault.
	MemoryError(level int, msg string)
	// Warning reports a non-fatal notice. repeat is true when the
	// current test has already warned.
	Warning(level, line int, msg string, repeat bool)
	// Log reports a user note.
	Log(level, line int, msg string)
	// MemoryDump renders pre-formatted arena rows.
	MemoryDump(level int, rows []string)
	// Summary reports the final run tally.
	Summary(total, passed, warnings int, rate int)
}
