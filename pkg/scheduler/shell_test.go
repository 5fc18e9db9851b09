package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mason-build/mason/pkg/graph"
)

func TestShellRunnerRunsInBuildDir(t *testing.T) {
	dirs := Dirs{SourceRoot: t.TempDir(), BuildDir: t.TempDir()}
	runner := NewShellRunner(dirs)

	node := &graph.Node{Declaration: graph.Declaration{
		Name:    "greeting",
		Command: "echo hello > greeting.txt",
	}}
	require.NoError(t, runner.Run(context.Background(), node))

	data, err := os.ReadFile(filepath.Join(dirs.BuildDir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestShellRunnerPassesNodeEnv(t *testing.T) {
	dirs := Dirs{SourceRoot: t.TempDir(), BuildDir: t.TempDir()}
	runner := NewShellRunner(dirs)
	var out bytes.Buffer
	runner.stdout = &out

	node := &graph.Node{Declaration: graph.Declaration{
		Name:    "env-check",
		Command: "echo $BUILD_FLAVOR",
		Env:     map[string]string{"BUILD_FLAVOR": "release"},
	}}
	require.NoError(t, runner.Run(context.Background(), node))
	assert.Equal(t, "release\n", out.String())
}

func TestShellRunnerStopsOnFirstFailure(t *testing.T) {
	dirs := Dirs{SourceRoot: t.TempDir(), BuildDir: t.TempDir()}
	runner := NewShellRunner(dirs)

	node := &graph.Node{Declaration: graph.Declaration{
		Name:    "broken",
		Command: "false\necho too-late > marker.txt",
	}}
	require.Error(t, runner.Run(context.Background(), node))

	_, err := os.Stat(filepath.Join(dirs.BuildDir, "marker.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestShellRunnerRejectsUnparsableCommands(t *testing.T) {
	dirs := Dirs{SourceRoot: t.TempDir(), BuildDir: t.TempDir()}
	runner := NewShellRunner(dirs)

	node := &graph.Node{Declaration: graph.Declaration{
		Name:    "syntax",
		Command: "if true; then",
	}}
	assert.Error(t, runner.Run(context.Background(), node))
}
