package runner

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/sandbox"
)

// GroupFunc is a group body. The body is invoked once per pass; state
// declared inside it is rebuilt for every test, so tests never observe
// each other's mutations.
type GroupFunc func(t *T)

// Group describes the behavior of one unit under test. Its declaration
// line doubles as its identity for targeted runs.
type Group struct {
	Name string
	Line int
	Fn   GroupFunc
}

// Suite is a batch of groups declared in one source file.
type Suite struct {
	Name   string
	File   string
	Groups []*Group
}

// NewSuite creates a suite, recording the calling file as the suite's
// source position.
func NewSuite(name string, groups ...*Group) *Suite {
	_, file, _, _ := runtime.Caller(1)
	return &Suite{Name: name, File: filepath.Base(file), Groups: groups}
}

// NewGroup creates a group, recording the calling line as the group's
// source position.
func NewGroup(name string, fn GroupFunc) *Group {
	_, _, line, _ := runtime.Caller(1)
	return &Group{Name: name, Line: line, Fn: fn}
}

// T is the handle passed to group bodies. Every position-sensitive
// method records its caller's line, which stands in for the statement's
// position within the group body.
type T struct {
	s *runState
}

func callerLine() int {
	_, _, line, _ := runtime.Caller(2)
	return line
}

// Context opens a nested block whose setup statements are shared by the
// tests inside it. The body runs on every pass while the context is
// open; when a pass discovers nothing new inside it, the context closes
// and the pass ends.
func (t *T) Context(desc string, fn func()) {
	line := callerLine()
	if !t.s.beginContext(line, desc) {
		return
	}
	fn()
	if !t.s.beginContext(line, desc) {
		return
	}
	if t.s.endContext(line) {
		panic(passComplete{})
	}
}

// It declares one example. At most one example body runs per pass.
func (t *T) It(desc string, fn func()) {
	t.runTest(callerLine(), "it "+desc, fn)
}

// Test is It without the "it" prefix on the description.
func (t *T) Test(desc string, fn func()) {
	t.runTest(callerLine(), desc, fn)
}

func (t *T) runTest(line int, desc string, fn func()) {
	if t.s.beginTest(line, desc) {
		fn()
	}
}

// After runs its body only while a test is in progress, so statements
// after a test block can clean up what the context set up without
// executing on discovery-only passes.
func (t *T) After(fn func()) {
	if t.s.inProgress {
		fn()
	}
}

// Expect fails the test when cond is false. The optional description is
// included in the failure output.
func (t *T) Expect(cond bool, desc ...string) {
	if cond {
		return
	}
	msg := "expected condition to hold"
	if len(desc) > 0 {
		msg = "expected " + strings.Join(desc, " ")
	}
	t.s.fail(callerLine(), msg)
}

// ExpectEqual fails the test when got and want differ, printing both
// values.
func (t *T) ExpectEqual(got, want any) {
	line := callerLine()
	if equal(got, want) {
		return
	}
	show := t.s.params.ShowTypes
	t.s.fail(line, "expected equal values",
		"received "+reporting.FormatValue(got, show),
		"expected "+reporting.FormatValue(want, show),
	)
}

func equal(got, want any) (eq bool) {
	defer func() {
		// cmp panics on unexported fields; fall back to a plain compare
		if recover() != nil {
			eq = fmt.Sprintf("%#v", got) == fmt.Sprintf("%#v", want)
		}
	}()
	return cmp.Equal(got, want)
}

// Fail fails the test unconditionally.
func (t *T) Fail(msg string) {
	t.s.fail(callerLine(), msg)
}

// Log prints a note once per group, the first time the traversal
// reaches it. Notes only appear at notes verbosity or higher.
func (t *T) Log(msg string) {
	t.s.logNote(callerLine(), msg)
}

// Warn prints a warning regardless of verbosity. A test warns at most
// once toward the run's warning tally.
func (t *T) Warn(msg string) {
	t.s.warn(callerLine(), msg)
}

// LogMemory dumps the arena block containing p. Subject to the same
// once-per-group and verbosity gating as Log.
func (t *T) LogMemory(p sandbox.Ptr) {
	t.s.logMemory(callerLine(), p)
}

// ExpectToFail inverts the test's outcome: a failure is recorded as a
// pass and a pass as a failure. Memory faults are not inverted.
func (t *T) ExpectToFail() {
	t.s.expectToFail()
}

// ExpectMemoryFaults declares that the test should trip the memory
// checker. The test fails if no fault is detected.
func (t *T) ExpectMemoryFaults() {
	t.s.expectMemoryFaults(callerLine())
}

// FailNextAlloc forces the next allocation to fail. The test fails if
// no allocation is attempted afterwards.
func (t *T) FailNextAlloc() {
	t.s.failAllocs(callerLine(), true)
}

// FailAllAllocs forces every remaining allocation in the test to fail.
func (t *T) FailAllAllocs() {
	t.s.failAllocs(callerLine(), false)
}

// AllocCount returns the number of sandbox allocations so far this
// test, or -1 when memory checking is disabled.
func (t *T) AllocCount() int {
	return t.s.allocCount(callerLine(), true)
}

// FreeCount returns the number of sandbox releases so far this test,
// or -1 when memory checking is disabled.
func (t *T) FreeCount() int {
	return t.s.allocCount(callerLine(), false)
}

// Alloc reserves size bytes in the memory sandbox.
func (t *T) Alloc(size int) sandbox.Ptr {
	return t.s.mem.Alloc(size)
}

// Calloc reserves count*elemSize zeroed bytes in the memory sandbox.
func (t *T) Calloc(count, elemSize int) sandbox.Ptr {
	return t.s.mem.Calloc(count, elemSize)
}

// Realloc resizes a sandbox allocation.
func (t *T) Realloc(p sandbox.Ptr, size int) sandbox.Ptr {
	return t.s.mem.Realloc(p, size)
}

// Free releases a sandbox allocation.
func (t *T) Free(p sandbox.Ptr) {
	t.s.mem.Free(p)
}

// Bytes returns an unchecked window into the sandbox arena, the moral
// equivalent of a raw pointer.
func (t *T) Bytes(p sandbox.Ptr, n int) []byte {
	return t.s.mem.Bytes(p, n)
}
