package testrunner

import (
	"encoding/json"
	"io"
	"time"

	"github.com/mason-build/mason/pkg/graph"
)

// Outcome classifies a single test invocation.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeTimeout
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeSkip:
		return "skip"
	}
	return "unknown"
}

// Result is the outcome of one test case.
type Result struct {
	Case     graph.TestCase
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
	// Err carries the reason for skips and invocation failures.
	Err error
}

// Report aggregates a whole test run.
type Report struct {
	Results  []Result
	Passed   int
	Failed   int
	Timeouts int
	Skipped  int
}

// OK reports whether every selected test passed. Skips count as failure
// because they mean a prerequisite build failed or the run was cut short.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Timeouts == 0 && r.Skipped == 0
}

func (r *Report) count(res Result) {
	switch res.Outcome {
	case OutcomePass:
		r.Passed++
	case OutcomeFail:
		r.Failed++
	case OutcomeTimeout:
		r.Timeouts++
	case OutcomeSkip:
		r.Skipped++
	}
}

type logEntry struct {
	Name            string   `json:"name"`
	Suite           []string `json:"suite"`
	Result          string   `json:"result"`
	ExitCode        int      `json:"exit_code"`
	DurationSeconds float64  `json:"duration"`
	Stdout          string   `json:"stdout,omitempty"`
	Stderr          string   `json:"stderr,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// WriteJSON emits one JSON object per line, a machine-readable log of
// exactly which tests ran and how they ended.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	for _, res := range r.Results {
		entry := logEntry{
			Name:            res.Case.Name,
			Suite:           res.Case.Suites,
			Result:          res.Outcome.String(),
			ExitCode:        res.ExitCode,
			DurationSeconds: res.Duration.Seconds(),
			Stdout:          string(res.Stdout),
			Stderr:          string(res.Stderr),
		}
		if entry.Suite == nil {
			entry.Suite = []string{}
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}

		if err := encoder.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
