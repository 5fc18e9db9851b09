package testrunner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Invocation is one fully resolved test process call.
type Invocation struct {
	Path    string
	Args    []string
	Env     []string
	Dir     string
	Timeout time.Duration
}

// ProcResult is what came back from the process.
type ProcResult struct {
	ExitCode int
	TimedOut bool
	Stdout   []byte
	Stderr   []byte
}

// ProcessRunner launches test processes. The default implementation uses
// os/exec; tests substitute a fake.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) (ProcResult, error)
}

type execRunner struct{}

// NewExecRunner returns the os/exec based process runner. The timeout is
// enforced by killing the process, which is the one case where we don't
// wait for in-flight work.
func NewExecRunner() ProcessRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, inv Invocation) (ProcResult, error) {
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ProcResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}
