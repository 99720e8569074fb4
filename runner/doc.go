// Package runner implements the traversal engine at the core of gspec.
//
// A group body is an ordinary function, but it is not executed once: the
// runner invokes it repeatedly, one pass per test, using the source line
// of each statement as a stable identity. A cursor tracks the last line
// consumed; each pass skips everything at or before the cursor, runs the
// first new test it finds, and ends. Context blocks persist on a stack
// between passes, so their setup re-executes for every test inside them
// while tests stay isolated from each other's side effects.
//
// The traversal terminates for a group when a full pass moves neither
// the cursor nor the context stack.
package runner
