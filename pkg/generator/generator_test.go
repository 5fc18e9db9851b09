package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mason-build/mason/pkg/graph"
)

func TestExpandSubstitutesPlaceholders(t *testing.T) {
	rule := Rule{
		Name:    "compile",
		Command: "cc -c @INPUT@ -o @OUTPUT@",
		Outputs: []string{"@BASENAME@.o"},
	}

	decls, err := Expand(rule, []string{"src/a.c", "src/b.c"}, graph.Platform{OS: "linux"})
	require.NoError(t, err)
	require.Len(t, decls, 2)

	assert.Equal(t, "compile@0", decls[0].Name)
	assert.Equal(t, graph.KindGeneratedFile, decls[0].Kind)
	assert.Equal(t, []string{"src/a.c"}, decls[0].Inputs)
	assert.Equal(t, []string{"a.o"}, decls[0].Outputs)
	assert.Equal(t, "cc -c src/a.c -o a.o", decls[0].Command)

	assert.Equal(t, "compile@1", decls[1].Name)
	assert.Equal(t, []string{"b.o"}, decls[1].Outputs)
	assert.Equal(t, "cc -c src/b.c -o b.o", decls[1].Command)
}

func TestExpandIndexedOutputs(t *testing.T) {
	rule := Rule{
		Name:    "codegen",
		Command: "gen @INPUT@ --header @OUTPUT0@ --source @OUTPUT1@",
		Outputs: []string{"@BASENAME@.h", "@BASENAME@.c"},
	}

	decls, err := Expand(rule, []string{"proto/api.def"}, graph.Platform{OS: "linux"})
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "gen proto/api.def --header api.h --source api.c", decls[0].Command)
	assert.Equal(t, []string{"api.h", "api.c"}, decls[0].Outputs)
}

func TestExpandReportsPlaceholderRange(t *testing.T) {
	rule := Rule{
		Name:    "codegen",
		Command: "gen @INPUT@ -o @OUTPUT2@",
		Outputs: []string{"@BASENAME@.h", "@BASENAME@.c"},
	}

	_, err := Expand(rule, []string{"api.def"}, graph.Platform{OS: "linux"})
	var rangeErr *PlaceholderRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "codegen", rangeErr.Rule)
	assert.Equal(t, "@OUTPUT2@", rangeErr.Placeholder)
	assert.Equal(t, 2, rangeErr.Declared)
}

func TestExpandPlatformSuffixes(t *testing.T) {
	rule := Rule{
		Name:    "compile",
		Command: "cl /c @INPUT@ /Fo@OUTPUT@",
		Outputs: []string{"@BASENAME@@OBJSUFFIX@"},
	}

	decls, err := Expand(rule, []string{"a.c"}, graph.Platform{OS: "windows", ObjSuffix: ".obj", ExeSuffix: ".exe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.obj"}, decls[0].Outputs)

	decls, err = Expand(rule, []string{"a.c"}, graph.Platform{OS: "linux", ObjSuffix: ".o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.o"}, decls[0].Outputs)
}

func TestExpandPlainName(t *testing.T) {
	rule := Rule{
		Name:    "copy",
		Command: "cp @INPUT@ @OUTPUT@",
		Outputs: []string{"gen/@PLAINNAME@"},
	}

	decls, err := Expand(rule, []string{"data/config.yaml"}, graph.Platform{OS: "linux"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gen/config.yaml"}, decls[0].Outputs)
	assert.Equal(t, "cp data/config.yaml gen/config.yaml", decls[0].Command)
}

func TestExpandIsDeterministic(t *testing.T) {
	rule := Rule{
		Name:    "compile",
		Command: "cc -c @INPUT@ -o @OUTPUT@",
		Outputs: []string{"@BASENAME@.o"},
		Env:     map[string]string{"CFLAGS": "-O2"},
	}
	inputs := []string{"z.c", "a.c", "m.c"}

	first, err := Expand(rule, inputs, graph.Platform{OS: "linux"})
	require.NoError(t, err)
	second, err := Expand(rule, inputs, graph.Platform{OS: "linux"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExpandRejectsInvalidRules(t *testing.T) {
	_, err := Expand(Rule{Command: "true"}, []string{"a"}, graph.Platform{})
	assert.Error(t, err)

	_, err = Expand(Rule{Name: "nop", Command: "true"}, []string{"a"}, graph.Platform{})
	assert.Error(t, err)
}
