package types

import (
	"fmt"
	"time"
)

// TestStatus represents the possible outcomes of a spec execution
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// Verbosity controls which categories of event reach the reporting sink.
type Verbosity int

const (
	// VerbosityQuiet prints only failures and warnings.
	VerbosityQuiet Verbosity = iota
	// VerbosityNotes additionally prints user log lines.
	VerbosityNotes
	// VerbosityRun additionally prints passing tests.
	VerbosityRun
	// VerbosityAll prints everything, including headers of tests that
	// are not run.
	VerbosityAll
)

// ParseVerbosity converts a flag value into a Verbosity level.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "", "quiet", "none":
		return VerbosityQuiet, nil
	case "notes":
		return VerbosityNotes, nil
	case "run", "verbose":
		return VerbosityRun, nil
	case "all":
		return VerbosityAll, nil
	}
	return VerbosityQuiet, fmt.Errorf("invalid verbosity %q (expected quiet, notes, run or all)", s)
}

func (v Verbosity) String() string {
	switch v {
	case VerbosityNotes:
		return "notes"
	case VerbosityRun:
		return "run"
	case VerbosityAll:
		return "all"
	default:
		return "quiet"
	}
}

// RunStats tracks spec statistics accumulated across a run. Total
// counts executed tests only; skipped tests are tallied separately.
type RunStats struct {
	Total     int
	Passed    int
	Skipped   int
	Warnings  int
	StartTime time.Time
	EndTime   time.Time
}

// Failed returns the number of executed specs that did not pass.
func (s RunStats) Failed() int {
	return s.Total - s.Passed
}

// PassRate returns the percentage of executed specs that passed.
func (s RunStats) PassRate() int {
	if s.Total == 0 {
		return 0
	}
	return int(100.0 * float64(s.Passed) / float64(s.Total))
}

// Status reduces the run statistics to a single outcome.
func (s RunStats) Status() TestStatus {
	switch {
	case s.Failed() > 0:
		return TestStatusFail
	case s.Total == 0:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}
