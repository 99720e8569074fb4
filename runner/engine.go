package runner

import (
	"fmt"

	"github.com/gspec/gspec/reporting"
	"github.com/gspec/gspec/types"
)

// The traversal works by re-invoking the group body once per pass and
// letting the cursor decide which statements are live. Each pass runs at
// most one new test, or closes at most one context; the pass loop in
// runGroup keeps invoking the body until a pass discovers nothing.

// beginContext is called when the body reaches a context's opening
// statement. It reports whether the body inside the context should run
// this pass.
func (s *runState) beginContext(line int, desc string) bool {
	// A test ran earlier in this pass; leave the stack alone so open
	// contexts stay open for their closing statements.
	if s.inProgress {
		return false
	}

	st := s.stack

	// Walking back up the stack from a previous pass: re-enter without
	// duplicating the frame.
	if st.index < st.top && st.frames[st.index+1].line == line {
		st.index++
		return true
	}

	// Closing sweep of the same context within this pass.
	if st.frames[st.index].line == line {
		return true
	}

	// The cursor has moved past this context: everything in it is done.
	if s.cursor > line {
		return false
	}

	// First discovery of this context.
	requested := false
	if line == s.targetLine {
		requested = true
		s.targetLine = 0
	}

	s.cursor = line

	if st.top+1 >= s.params.MaxDepth {
		s.warn(line, fmt.Sprintf(
			"context error: too many nested contexts - maximum depth allowed: %d", s.params.MaxDepth))
		s.warn(line, "the limit can be raised with --max-depth")
		return false
	}

	st.push(frame{line: line, desc: desc, requested: requested})
	return true
}

// endContext is called when the body reaches a context's closing sweep.
// Returning true pops the context and ends the pass.
func (s *runState) endContext(line int) bool {
	if s.inProgress {
		return false
	}

	// The opening and closing statements share a source line; bumping
	// the cursor past it keeps the whole block skipped from now on.
	s.cursor = line + 1

	st := s.stack

	if st.topFrame().requested {
		// The targeted context has finished; suppress everything after.
		s.targetLine = -1
	}

	if st.top == 0 {
		panic(&EngineFault{Line: line, Msg: "closing a context that was never opened"})
	}

	st.pop()
	s.closedContext = true
	return true
}

// beginTest reports whether the test declared at line should run this
// pass.
func (s *runState) beginTest(line int, desc string) bool {
	if s.inProgress {
		return false
	}
	if s.cursor >= line {
		return false
	}

	s.cursor = line
	s.testLine = line
	s.desc = desc
	s.descPrinted = notPrinted

	if (s.targetLine == 0 || s.targetLine == line) && !s.skip {
		s.inProgress = true
		return true
	}

	// Not running. Show the title anyway at full verbosity, and always
	// for tests skipped by a directive.
	if s.params.Verbosity == types.VerbosityAll || s.skip {
		s.inProgress = true
		s.printHeaders(reporting.KindSkip, logged, "")
		s.inProgress = false
	}
	if s.skip {
		s.stats.Skipped++
	}
	return false
}

// endTest closes out the test the pass ran, evaluating its outcome
// against any declared expectations.
func (s *runState) endTest() bool {
	if !s.inProgress {
		return false
	}

	if !s.failed && s.memCheck {
		s.mem.FinalChecks()
		if s.mem.ArmedUnfired() {
			s.designError(s.testLine, "after: forced allocation failure requested, but never triggered")
		}
	}

	s.stats.Total++

	memFault, memExpect := false, false
	if s.memCheck {
		memFault = s.mem.Faulted()
		memExpect = s.mem.Expecting()
	}

	if s.failed == s.expectFail && memFault == memExpect && !s.designErr {
		s.stats.Passed++
		if s.params.Verbosity >= types.VerbosityRun || s.targetLine != 0 {
			note := ""
			if s.expectFail || memExpect {
				note = " (failed successfully)"
			}
			s.printHeaders(reporting.KindPass, logged, note)
		}
	} else {
		if s.expectFail {
			s.expectFail = false // so the failure prints
			s.fail(s.testLine, "expected to fail, but succeeded instead")
		}
		if memExpect {
			s.fail(s.testLine, "expected memory errors, but none were found")
		}
	}

	s.inProgress = false
	return true
}
