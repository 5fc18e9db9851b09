package graph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, root, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("// "+name+"\n"), 0660))
}

func TestBuilderRejectsDuplicateOutputs(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.c")

	b := NewBuilder(root, HostPlatform())
	require.NoError(t, b.Add(Declaration{
		Name:    "first",
		Kind:    KindCustomCommand,
		Inputs:  []string{"a.c"},
		Outputs: []string{"a.o"},
		Command: "cc -c a.c",
	}))

	err := b.Add(Declaration{
		Name:    "second",
		Kind:    KindCustomCommand,
		Inputs:  []string{"a.c"},
		Outputs: []string{"a.o"},
		Command: "cc -c a.c",
	})

	var dupErr *DuplicateOutputError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "a.o", dupErr.Output)
	assert.Equal(t, "first", dupErr.First)
	assert.Equal(t, "second", dupErr.Second)
}

func TestBuilderRejectsUnresolvedReferences(t *testing.T) {
	root := t.TempDir()

	b := NewBuilder(root, HostPlatform())
	require.NoError(t, b.Add(Declaration{
		Name:    "prog",
		Kind:    KindExecutable,
		Inputs:  []string{"missing.c"},
		Outputs: []string{"prog"},
		Command: "cc -o prog missing.c",
	}))

	_, err := b.Finalize()
	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "prog", refErr.Node)
	assert.Equal(t, "missing.c", refErr.Ref)
}

func TestBuilderResolvesImplicitEdges(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib.c")

	b := NewBuilder(root, HostPlatform())
	require.NoError(t, b.Add(Declaration{
		Name:    "lib",
		Kind:    KindLibrary,
		Inputs:  []string{"lib.c"},
		Outputs: []string{"lib.a"},
		Command: "cc -c lib.c && ar rcs lib.a lib.o",
	}))
	require.NoError(t, b.Add(Declaration{
		Name:    "prog",
		Kind:    KindExecutable,
		Inputs:  []string{"lib.a"},
		Outputs: []string{"prog"},
		Command: "cc -o prog lib.a",
	}))

	g, err := b.Finalize()
	require.NoError(t, err)

	prog, ok := g.Lookup("prog")
	require.True(t, ok)
	require.Len(t, prog.Deps(), 1)
	assert.Equal(t, "lib", prog.Deps()[0].Name)

	lib, _ := g.Lookup("lib")
	require.Len(t, lib.Dependents(), 1)
	assert.Equal(t, "prog", lib.Dependents()[0].Name)
}

func TestBuilderReportsCyclePath(t *testing.T) {
	root := t.TempDir()

	b := NewBuilder(root, HostPlatform())
	require.NoError(t, b.Add(Declaration{Name: "a", Kind: KindAlias, Deps: []string{"b"}}))
	require.NoError(t, b.Add(Declaration{Name: "b", Kind: KindAlias, Deps: []string{"c"}}))
	require.NoError(t, b.Add(Declaration{Name: "c", Kind: KindAlias, Deps: []string{"a"}}))

	_, err := b.Finalize()
	var cycleErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
	require.GreaterOrEqual(t, len(cycleErr.Cycle), 4)
	assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1])
}

func TestBuilderRejectsDuplicateTargets(t *testing.T) {
	b := NewBuilder(t.TempDir(), HostPlatform())
	require.NoError(t, b.Add(Declaration{Name: "x", Kind: KindAlias}))

	err := b.Add(Declaration{Name: "x", Kind: KindAlias})
	var dupErr *DuplicateTargetError
	require.True(t, errors.As(err, &dupErr))
}

func TestMetaTargetSynthesis(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "t.c")
	writeSource(t, root, "b.c")

	b := NewBuilder(root, HostPlatform())
	require.NoError(t, b.Add(Declaration{
		Name:    "unit-tests",
		Kind:    KindExecutable,
		Inputs:  []string{"t.c"},
		Outputs: []string{"unit-tests"},
		Command: "cc -o unit-tests t.c",
	}))
	require.NoError(t, b.Add(Declaration{
		Name:    "bench",
		Kind:    KindExecutable,
		Inputs:  []string{"b.c"},
		Outputs: []string{"bench"},
		Command: "cc -o bench b.c",
	}))
	b.AddTest(TestCase{Name: "unit", Target: "unit-tests"})
	b.AddTest(TestCase{Name: "perf", Target: "bench", IsBenchmark: true})

	g, err := b.Finalize()
	require.NoError(t, err)

	prereq, ok := g.Lookup(MetaTestPrereq)
	require.True(t, ok)
	assert.Equal(t, KindAlias, prereq.Kind)
	assert.False(t, prereq.BuildByDefault)
	require.Len(t, prereq.Deps(), 1)
	assert.Equal(t, "unit-tests", prereq.Deps()[0].Name)

	benchPrereq, ok := g.Lookup(MetaBenchmarkPrereq)
	require.True(t, ok)
	require.Len(t, benchPrereq.Deps(), 1)
	assert.Equal(t, "bench", benchPrereq.Deps()[0].Name)
}

func TestStateRoundTrip(t *testing.T) {
	srcRoot := t.TempDir()
	buildDir := t.TempDir()
	writeSource(t, srcRoot, "main.c")

	state := &State{
		SourceRoot: srcRoot,
		Declarations: []Declaration{{
			Name:           "prog",
			Kind:           KindExecutable,
			Inputs:         []string{"main.c"},
			Outputs:        []string{"prog"},
			Command:        "cc -o prog main.c",
			BuildByDefault: true,
		}},
		Tests:        []TestCase{{Name: "smoke", Target: "prog", Suites: []string{"quick"}}},
		Platform:     HostPlatform(),
		OptionValues: map[string]string{"warning_level": "2"},
	}

	require.NoError(t, WriteState(buildDir, state))

	loaded, err := ReadState(buildDir)
	require.NoError(t, err)
	assert.Equal(t, state.SourceRoot, loaded.SourceRoot)
	assert.Equal(t, state.OptionValues, loaded.OptionValues)

	g, err := loaded.BuildGraph()
	require.NoError(t, err)
	_, ok := g.Lookup("prog")
	assert.True(t, ok)
	require.Len(t, g.Tests(), 1)
	assert.Equal(t, "smoke", g.Tests()[0].Name)
}
