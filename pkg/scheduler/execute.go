package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/mason-build/mason/pkg/graph"
	"github.com/mason-build/mason/pkg/logctx"
)

// Status classifies the outcome of one planned node.
type Status int

const (
	StatusBuilt Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusBuilt:
		return "built"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// NodeResult is the outcome of a single planned node.
type NodeResult struct {
	Node     *graph.Node
	Status   Status
	Err      error
	Duration time.Duration

	stamp Record
}

// ExecutionResult aggregates a whole run.
type ExecutionResult struct {
	Results map[string]*NodeResult
	Built   int
	Failed  int
	Skipped int
}

// OK reports whether every planned node was built.
func (r *ExecutionResult) OK() bool { return r.Failed == 0 && r.Skipped == 0 }

// FailedNodes returns the names of all failed nodes in no particular order.
func (r *ExecutionResult) FailedNodes() []string {
	var names []string
	for name, res := range r.Results {
		if res.Status == StatusFailed {
			names = append(names, name)
		}
	}
	return names
}

// ExecuteOptions tune a single Execute call.
type ExecuteOptions struct {
	// Jobs bounds build parallelism; zero or negative means NumCPU.
	Jobs int
	// DryRun logs the commands without running anything and without
	// touching the stamp store.
	DryRun bool
	// OnStatus, if set, is called once per finished node, from the
	// coordinating goroutine.
	OnStatus func(*NodeResult)
}

// Execute runs the plan. A node's action starts only after all of its
// dependencies finished successfully; independent branches run concurrently
// up to Jobs workers. A failing node converts its transitive dependents to
// skipped but never stops sibling branches. Cancelling the context stops
// issuing new work while in-flight actions run to completion.
func (s *Scheduler) Execute(ctx context.Context, plan *BuildPlan, opts ExecuteOptions) (*ExecutionResult, error) {
	logger := logctx.FromContext(ctx)
	result := &ExecutionResult{Results: make(map[string]*NodeResult, len(plan.Steps))}

	if plan.Empty() {
		logger.Info().Msg("nothing to do, all targets are up to date")
		return result, nil
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(plan.Steps) {
		jobs = len(plan.Steps)
	}

	// depCount only counts dependencies that are part of the plan; fresh
	// dependencies are already satisfied.
	depCount := make(map[*graph.Node]int, len(plan.Steps))
	for _, node := range plan.Steps {
		for _, dep := range node.Deps() {
			if plan.Contains(dep.Name) {
				depCount[node]++
			}
		}
	}

	readyChan := make(chan *graph.Node, len(plan.Steps))
	doneChan := make(chan *NodeResult, len(plan.Steps))
	for i := 0; i < jobs; i++ {
		go s.worker(ctx, readyChan, doneChan, opts.DryRun)
	}
	defer close(readyChan)

	finish := func(res *NodeResult) {
		result.Results[res.Node.Name] = res
		switch res.Status {
		case StatusBuilt:
			result.Built++
		case StatusFailed:
			result.Failed++
		case StatusSkipped:
			result.Skipped++
		}
		if opts.OnStatus != nil {
			opts.OnStatus(res)
		}
	}

	// skip marks a node and all of its planned transitive dependents as
	// skipped. None of them can have been dispatched yet since at least one
	// dependency never succeeded.
	var skip func(node *graph.Node, cause error)
	skip = func(node *graph.Node, cause error) {
		if _, done := result.Results[node.Name]; done {
			return
		}
		finish(&NodeResult{Node: node, Status: StatusSkipped, Err: cause})
		for _, dep := range node.Dependents() {
			if plan.Contains(dep.Name) {
				skip(dep, cause)
			}
		}
	}

	for _, node := range plan.Steps {
		if depCount[node] == 0 {
			readyChan <- node
		}
	}

	for len(result.Results) < len(plan.Steps) {
		res := <-doneChan

		if res.Status != StatusBuilt {
			if res.Status == StatusFailed {
				logger.Error().Err(res.Err).Str("node", res.Node.Name).Msg("action failed")
			}
			finish(res)
			for _, dep := range res.Node.Dependents() {
				if plan.Contains(dep.Name) {
					skip(dep, res.Err)
				}
			}
			continue
		}

		if !opts.DryRun {
			s.stamps.Commit(res.Node.Name, res.stamp)
		}
		finish(res)

		for _, dep := range res.Node.Dependents() {
			if !plan.Contains(dep.Name) {
				continue
			}
			if _, done := result.Results[dep.Name]; done {
				continue
			}
			depCount[dep]--
			if depCount[dep] == 0 {
				if ctx.Err() != nil {
					skip(dep, ctx.Err())
				} else {
					readyChan <- dep
				}
			}
		}
	}

	if !opts.DryRun {
		if err := s.stamps.Save(); err != nil {
			return result, err
		}
	}

	logger.Info().
		Int("built", result.Built).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("build finished")

	return result, ctx.Err()
}

func (s *Scheduler) worker(ctx context.Context, readyChan <-chan *graph.Node, doneChan chan<- *NodeResult, dryRun bool) {
	for node := range readyChan {
		// A cancelled run still drains the queue, but queued nodes are not
		// started anymore.
		if ctx.Err() != nil {
			doneChan <- &NodeResult{Node: node, Status: StatusSkipped, Err: ctx.Err()}
			continue
		}

		logger := logctx.FromContext(ctx)
		logger.Info().Str("node", node.Name).Bool("command", true).Msg(node.Command)

		res := &NodeResult{Node: node, Status: StatusBuilt}
		start := time.Now()

		if !dryRun {
			err := s.runner.Run(ctx, node)
			if err == nil {
				// Verify the declared outputs exist and record their
				// fingerprints before dependents are unlocked.
				res.stamp, err = s.stampFor(node)
			}
			if err != nil {
				res.Status = StatusFailed
				res.Err = &ActionFailedError{Node: node.Name, Err: err}
			}
		}

		res.Duration = time.Since(start)
		doneChan <- res
	}
}
