package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/mason-build/mason/pkg/graph"
)

// ActionRunner executes a single node's action. The default implementation
// runs the action as a shell snippet; tests substitute their own.
type ActionRunner interface {
	Run(ctx context.Context, node *graph.Node) error
}

// ShellRunner runs node commands through the sh interpreter, with the build
// directory as working directory.
type ShellRunner struct {
	dirs   Dirs
	stdout io.Writer
	stderr io.Writer
}

// NewShellRunner creates a runner writing action output to this process'
// stdout/stderr.
func NewShellRunner(dirs Dirs) *ShellRunner {
	return &ShellRunner{dirs: dirs, stdout: os.Stdout, stderr: os.Stderr}
}

func actionEnv(node *graph.Node) expand.Environ {
	envVars := os.Environ()

	for name, value := range node.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

// execMiddleware reroutes mv, rm and mkdir to our own cross-platform
// implementations so build scripts behave the same everywhere.
func execMiddleware(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			switch args[0] {
			case "mv", "rm", "mkdir":
				exe, err := os.Executable()
				if err != nil {
					exe = "mason"
				}
				args = append([]string{exe, "util"}, args...)
			}
		}

		return next(ctx, args)
	}
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// Run parses and executes the node's command. The shell runs with -e, so
// the first failing statement fails the action.
func (r *ShellRunner) Run(ctx context.Context, node *graph.Node) error {
	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(node.Command), node.Name)
	if err != nil {
		return eris.Wrapf(err, "failed to parse command for %s", node.Name)
	}

	runner, err := interp.New(
		interp.Dir(r.dirs.BuildDir),
		interp.Env(actionEnv(node)),
		interp.ExecHandlers(execMiddleware),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, r.stdout, r.stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize shell runner")
	}

	for _, stmt := range prog.Stmts {
		if err := runner.Run(ctx, stmt); err != nil {
			return err
		}
		if runner.Exited() {
			return nil
		}
	}

	return nil
}
