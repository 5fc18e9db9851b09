// Package testrunner selects, builds and runs the test and benchmark cases
// registered in the target graph. Every test runs as an isolated process:
// its own scratch directory, an environment overlay and an enforced
// wall-clock timeout.
package testrunner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"

	"github.com/mason-build/mason/pkg/graph"
	"github.com/mason-build/mason/pkg/logctx"
	"github.com/mason-build/mason/pkg/scheduler"
)

// DefaultTimeout applies to cases that don't declare their own budget.
const DefaultTimeout = 30 * time.Second

// Options tune one Run call.
type Options struct {
	// Jobs bounds test parallelism, independently from build parallelism.
	// Zero or negative means one worker per case.
	Jobs int
	// BuildJobs bounds the prerequisite build.
	BuildJobs int
	// TimeoutMultiplier scales every case's timeout; zero means 1.
	TimeoutMultiplier float64
	// MaxFail stops scheduling new tests once this many failed; zero means
	// unlimited. Already running tests finish.
	MaxFail int
	// NoRebuild skips the prerequisite build and instead asserts that the
	// recorded state is still fresh.
	NoRebuild bool
	// ScratchRoot is where per-test working directories are created.
	ScratchRoot string
}

// Runner executes test cases against one configured build directory.
type Runner struct {
	graph *graph.Graph
	sched *scheduler.Scheduler
	dirs  scheduler.Dirs
	proc  ProcessRunner
}

// New creates a Runner. If proc is nil, tests run through os/exec.
func New(g *graph.Graph, sched *scheduler.Scheduler, dirs scheduler.Dirs, proc ProcessRunner) *Runner {
	if proc == nil {
		proc = NewExecRunner()
	}

	return &Runner{graph: g, sched: sched, dirs: dirs, proc: proc}
}

// Select filters the graph's cases. A case matches if its name matches any
// pattern (or all cases, when none is given) and its suites satisfy the
// include/exclude filters; exclusion wins over inclusion. benchmarks picks
// the benchmark population instead of the test population.
func Select(cases []graph.TestCase, patterns, include, exclude []string, benchmarks bool) ([]graph.TestCase, error) {
	var selected []graph.TestCase

	for _, tc := range cases {
		if tc.IsBenchmark != benchmarks {
			continue
		}

		if len(patterns) > 0 {
			matched := false
			for _, pattern := range patterns {
				ok, err := path.Match(pattern, tc.Name)
				if err != nil {
					return nil, eris.Wrapf(err, "invalid test pattern %s", pattern)
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}

		excluded := false
		for _, suite := range exclude {
			if tc.InSuite(suite) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		if len(include) > 0 {
			included := false
			for _, suite := range include {
				if tc.InSuite(suite) {
					included = true
					break
				}
			}
			if !included {
				continue
			}
		}

		selected = append(selected, tc)
	}

	return selected, nil
}

// Run builds the prerequisites of the selected cases and executes them.
// Per-test failures never abort the run; the report carries one result per
// selected case.
func (r *Runner) Run(ctx context.Context, cases []graph.TestCase, opts Options) (*Report, error) {
	logger := logctx.FromContext(ctx)
	report := &Report{Results: make([]Result, len(cases))}
	if len(cases) == 0 {
		return report, nil
	}

	broken, err := r.buildPrerequisites(ctx, cases, opts)
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs < 1 || jobs > len(cases) {
		jobs = len(cases)
	}

	var (
		wg       sync.WaitGroup
		countMu  sync.Mutex
		failures int
		locks    lockTable
	)
	work := make(chan int)

	stopScheduling := func() bool {
		if opts.MaxFail <= 0 {
			return false
		}
		countMu.Lock()
		defer countMu.Unlock()
		return failures >= opts.MaxFail
	}

	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				tc := cases[idx]

				if cause, ok := broken[tc.Target]; ok {
					report.Results[idx] = Result{Case: tc, Outcome: OutcomeSkip, Err: cause}
					continue
				}
				if stopScheduling() {
					report.Results[idx] = Result{Case: tc, Outcome: OutcomeSkip, Err: eris.New("maxfail threshold reached")}
					continue
				}
				if ctx.Err() != nil {
					report.Results[idx] = Result{Case: tc, Outcome: OutcomeSkip, Err: ctx.Err()}
					continue
				}

				unlock := locks.acquire(tc.Locks)
				res := r.runCase(ctx, tc, opts)
				unlock()

				if res.Outcome == OutcomeFail || res.Outcome == OutcomeTimeout {
					countMu.Lock()
					failures++
					countMu.Unlock()
				}

				logger.Info().
					Str("test", tc.Name).
					Str("result", res.Outcome.String()).
					Dur("duration", res.Duration).
					Msg("test finished")
				report.Results[idx] = res
			}
		}()
	}

	for idx := range cases {
		work <- idx
	}
	close(work)
	wg.Wait()

	for _, res := range report.Results {
		report.count(res)
	}

	logger.Info().
		Int("passed", report.Passed).
		Int("failed", report.Failed).
		Int("timeouts", report.Timeouts).
		Int("skipped", report.Skipped).
		Msg("test run finished")

	return report, nil
}

// buildPrerequisites brings the executables of the selected cases up to
// date. It returns the targets whose build failed, mapped to the cause, so
// their cases can be classified as skipped.
func (r *Runner) buildPrerequisites(ctx context.Context, cases []graph.TestCase, opts Options) (map[string]error, error) {
	seen := make(map[string]bool)
	var targets []string
	for _, tc := range cases {
		if !seen[tc.Target] {
			seen[tc.Target] = true
			targets = append(targets, tc.Target)
		}
	}
	sort.Strings(targets)

	if opts.NoRebuild {
		return nil, r.sched.AssertFresh(targets)
	}

	plan, err := r.sched.Plan(targets, false)
	if err != nil {
		return nil, err
	}

	result, err := r.sched.Execute(ctx, plan, scheduler.ExecuteOptions{Jobs: opts.BuildJobs})
	if err != nil {
		return nil, err
	}

	broken := make(map[string]error)
	for _, target := range targets {
		res, ok := result.Results[target]
		if ok && res.Status != scheduler.StatusBuilt {
			cause := res.Err
			if cause == nil {
				cause = eris.Errorf("prerequisite %s was not built", target)
			}
			broken[target] = cause
		}
	}

	return broken, nil
}

func (r *Runner) runCase(ctx context.Context, tc graph.TestCase, opts Options) Result {
	res := Result{Case: tc}

	scratch := filepath.Join(opts.ScratchRoot, tc.Name+"-"+nanoid.New())
	if err := os.MkdirAll(scratch, 0770); err != nil {
		res.Outcome = OutcomeFail
		res.Err = eris.Wrapf(err, "failed to create scratch directory for %s", tc.Name)
		return res
	}
	defer os.RemoveAll(scratch)

	timeout := tc.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if opts.TimeoutMultiplier > 0 {
		timeout = time.Duration(float64(timeout) * opts.TimeoutMultiplier)
	}

	start := time.Now()
	proc, err := r.proc.Run(ctx, Invocation{
		Path:    r.executablePath(tc.Target),
		Args:    tc.Args,
		Env:     overlayEnv(tc.Env),
		Dir:     scratch,
		Timeout: timeout,
	})
	res.Duration = time.Since(start)
	res.Stdout = proc.Stdout
	res.Stderr = proc.Stderr
	res.ExitCode = proc.ExitCode

	switch {
	case err != nil:
		res.Outcome = OutcomeFail
		res.Err = eris.Wrapf(err, "failed to run %s", tc.Name)
	case proc.TimedOut:
		res.Outcome = OutcomeTimeout
	case tc.ShouldFail:
		// expected-failure inverts the criterion: exiting cleanly is the
		// failure mode.
		if proc.ExitCode == 0 {
			res.Outcome = OutcomeFail
		} else {
			res.Outcome = OutcomePass
		}
	case proc.ExitCode == 0:
		res.Outcome = OutcomePass
	default:
		res.Outcome = OutcomeFail
	}

	return res
}

func (r *Runner) executablePath(target string) string {
	exe := target
	if node, ok := r.graph.Lookup(target); ok && len(node.Outputs) > 0 {
		exe = node.Outputs[0]
	}

	if filepath.IsAbs(exe) {
		return exe
	}
	return filepath.Join(r.dirs.BuildDir, exe)
}

func overlayEnv(overlay map[string]string) []string {
	env := os.Environ()
	for name, value := range overlay {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	return env
}

// lockTable serializes tests that declare overlapping resource locks.
// Locks are acquired in sorted order so two tests can't deadlock each
// other.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) acquire(names []string) func() {
	if len(names) == 0 {
		return func() {}
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var held []*sync.Mutex
	for _, name := range sorted {
		t.mu.Lock()
		if t.locks == nil {
			t.locks = make(map[string]*sync.Mutex)
		}
		lock, ok := t.locks[name]
		if !ok {
			lock = &sync.Mutex{}
			t.locks[name] = lock
		}
		t.mu.Unlock()

		lock.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
