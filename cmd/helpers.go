package cmd

import (
	"context"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/graph"
	"github.com/mason-build/mason/pkg/logctx"
	"github.com/mason-build/mason/pkg/options"
	"github.com/mason-build/mason/pkg/scheduler"
)

// OptionsFile is the option declaration document expected in the source
// root.
const OptionsFile = "mason_options.yaml"

// buildEnv bundles everything a subcommand needs for one configured build
// directory.
type buildEnv struct {
	buildDir string
	state    *graph.State
	graph    *graph.Graph
	sched    *scheduler.Scheduler
	options  *options.Set
	dirs     scheduler.Dirs
}

// loadEnv reads the build-directory state, reconstructs the graph and wires
// up the scheduler.
func loadEnv(cmd *cobra.Command) (*buildEnv, error) {
	buildDir, err := cmd.Flags().GetString("builddir")
	if err != nil {
		return nil, err
	}

	state, err := graph.ReadState(buildDir)
	if err != nil {
		return nil, err
	}

	g, err := state.BuildGraph()
	if err != nil {
		return nil, err
	}

	stamps, err := scheduler.LoadStamps(buildDir)
	if err != nil {
		return nil, err
	}

	optSet, err := options.LoadFile(filepath.Join(state.SourceRoot, OptionsFile))
	if err != nil {
		return nil, err
	}
	if err := optSet.Apply(state.OptionValues); err != nil {
		return nil, err
	}

	dirs := scheduler.Dirs{SourceRoot: state.SourceRoot, BuildDir: buildDir}
	return &buildEnv{
		buildDir: buildDir,
		state:    state,
		graph:    g,
		sched:    scheduler.New(g, stamps, dirs, nil),
		options:  optSet,
		dirs:     dirs,
	}, nil
}

// loggerContext returns a context carrying the console logger.
func loggerContext(parent context.Context) context.Context {
	logger := zerolog.New(NewConsoleWriter())
	return logctx.WithLogger(parent, &logger)
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
