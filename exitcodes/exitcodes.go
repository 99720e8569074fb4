// Package exitcodes defines the standard exit codes used by gspec.
package exitcodes

// Exit code constants used by gspec test binaries:
//
// * Success (0): all tests pass
// * TestFailure (1): one or more tests fail
// * RuntimeErr (2): configuration errors, traversal faults, panics
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
