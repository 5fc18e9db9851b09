package graph

import "time"

// TestCase references an executable node and describes how to run it. The
// case is owned by the graph but does not own the executable.
type TestCase struct {
	Name   string
	Target string
	Suites []string
	Args   []string
	// Env is applied on top of the ambient environment of the test process.
	Env map[string]string
	// Timeout is the wall-clock budget before the process is killed. Zero
	// means the runner's default applies.
	Timeout time.Duration
	// ShouldFail inverts the success criterion: a zero exit is a failure,
	// a nonzero exit is a pass.
	ShouldFail  bool
	IsBenchmark bool
	// Locks names resources this test needs exclusively. Tests sharing a
	// lock name never run at the same time.
	Locks []string
}

// InSuite reports whether the case carries the given suite tag.
func (tc *TestCase) InSuite(suite string) bool {
	for _, s := range tc.Suites {
		if s == suite {
			return true
		}
	}
	return false
}
