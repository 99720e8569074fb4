package reporting

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder is a Sink that captures events as plain strings, for tests
// and programmatic inspection of a run.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Contains reports whether any recorded event contains substr.
func (r *Recorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// Count returns the number of recorded events containing substr.
func (r *Recorder) Count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

func (r *Recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *Recorder) SuiteHeader(file string)    { r.add("suite %s", file) }
func (r *Recorder) SkippedSuite(file string)   { r.add("skip-suite %s", file) }
func (r *Recorder) GroupHeader(line int, name string) {
	r.add("group(%d) %s", line, name)
}
func (r *Recorder) ContextHeader(level, line int, desc string) {
	r.add("context(%d) %s", line, desc)
}

func (r *Recorder) TestHeader(level int, desc string, kind Kind, note string) {
	k := "fail"
	switch kind {
	case KindPass:
		k = "pass"
	case KindSkip:
		k = "skip"
	case KindLog:
		k = "log"
	}
	r.add("test[%s] %s%s", k, desc, note)
}

func (r *Recorder) PreTest(level int) { r.add("pre-test") }

func (r *Recorder) Failure(level, line int, msg string, detail []string) {
	if len(detail) > 0 {
		r.add("fail(%d) %s | %s", line, msg, strings.Join(detail, " | "))
		return
	}
	r.add("fail(%d) %s", line, msg)
}

func (r *Recorder) MemoryError(level int, msg string) {
	r.add("memory error: %s", msg)
}

func (r *Recorder) Warning(level, line int, msg string, repeat bool) {
	r.add("warn(%d) %s", line, msg)
}

func (r *Recorder) Log(level, line int, msg string) {
	r.add("log(%d) %s", line, msg)
}

func (r *Recorder) MemoryDump(level int, rows []string) {
	r.add("dump %d rows", len(rows))
}

func (r *Recorder) Summary(total, passed, warnings, rate int) {
	r.add("summary %d/%d warnings=%d rate=%d", passed, total, warnings, rate)
}
