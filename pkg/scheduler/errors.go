package scheduler

import (
	"fmt"
	"strings"
)

// StaleWithoutRebuildError is reported by AssertFresh when the requested
// targets have stale nodes but the caller opted out of rebuilding. This is
// fatal by design: the no-rebuild escape hatch carries no guarantee beyond
// trusting the caller.
type StaleWithoutRebuildError struct {
	Nodes []string
}

func (e *StaleWithoutRebuildError) Error() string {
	return fmt.Sprintf("targets are stale but --no-rebuild was given: %s", strings.Join(e.Nodes, ", "))
}

// ActionFailedError wraps the failure of a single node's action. It is
// non-fatal to the overall run; dependents of the node are skipped and the
// failure shows up in the execution result.
type ActionFailedError struct {
	Node string
	Err  error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("action for %s failed: %v", e.Node, e.Err)
}

func (e *ActionFailedError) Unwrap() error {
	return e.Err
}
