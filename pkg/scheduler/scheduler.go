// Package scheduler turns the target graph into incremental build plans and
// executes them with bounded parallelism. Staleness is decided per node from
// persisted content fingerprints; execution failures skip dependents without
// aborting independent branches.
package scheduler

import (
	"path/filepath"

	"github.com/mason-build/mason/pkg/graph"
)

// Dirs locates the two roots every path resolves against: declared outputs
// live under BuildDir, everything else under SourceRoot.
type Dirs struct {
	SourceRoot string
	BuildDir   string
}

// Scheduler plans and executes builds for one graph and one build
// directory.
type Scheduler struct {
	graph  *graph.Graph
	stamps *StampStore
	dirs   Dirs
	runner ActionRunner
}

// New creates a scheduler. If runner is nil, actions run through the
// default shell runner.
func New(g *graph.Graph, stamps *StampStore, dirs Dirs, runner ActionRunner) *Scheduler {
	if runner == nil {
		runner = NewShellRunner(dirs)
	}

	return &Scheduler{
		graph:  g,
		stamps: stamps,
		dirs:   dirs,
		runner: runner,
	}
}

// Stamps exposes the staleness store, mainly for inspection after a run.
func (s *Scheduler) Stamps() *StampStore { return s.stamps }

func (s *Scheduler) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, ok := s.graph.NodeForOutput(path); ok {
		return filepath.Join(s.dirs.BuildDir, path)
	}
	return filepath.Join(s.dirs.SourceRoot, path)
}

// isStale decides whether a single node needs to run, ignoring upstream
// state (the planner handles transitive propagation). A node is stale if it
// has no record, its command changed, an output is missing or changed, or
// an input's fingerprint differs from the record.
func (s *Scheduler) isStale(node *graph.Node) bool {
	if node.Command == "" {
		return false
	}

	rec, ok := s.stamps.Get(node.Name)
	if !ok {
		return true
	}

	if rec.CommandSum != commandSum(node) {
		return true
	}

	for _, out := range node.Outputs {
		stamp, err := stampPath(s.resolvePath(out), rec.Outputs[out])
		if err != nil || stamp.Sum != rec.Outputs[out].Sum {
			return true
		}
	}

	for _, in := range node.Inputs {
		stamp, err := stampPath(s.resolvePath(in), rec.Inputs[in])
		if err != nil || stamp.Sum != rec.Inputs[in].Sum {
			return true
		}
	}

	return false
}

// stampFor builds the record to persist after node ran successfully. It
// fails if the action didn't produce one of its declared outputs.
func (s *Scheduler) stampFor(node *graph.Node) (Record, error) {
	rec := Record{
		CommandSum: commandSum(node),
		Inputs:     make(map[string]FileStamp, len(node.Inputs)),
		Outputs:    make(map[string]FileStamp, len(node.Outputs)),
	}

	prev, _ := s.stamps.Get(node.Name)

	for _, in := range node.Inputs {
		stamp, err := stampPath(s.resolvePath(in), prev.Inputs[in])
		if err != nil {
			return rec, err
		}
		rec.Inputs[in] = stamp
	}

	for _, out := range node.Outputs {
		stamp, err := stampPath(s.resolvePath(out), FileStamp{})
		if err != nil {
			return rec, err
		}
		rec.Outputs[out] = stamp
	}

	return rec, nil
}
