// Package generator expands parametric generator rules into concrete graph
// nodes: one command template applied over an ordered input list, each input
// producing one node with substituted placeholders.
package generator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mason-build/mason/pkg/graph"
)

// Rule is an immutable command template. Supported placeholders:
//
//	@INPUT@     the input path
//	@OUTPUT@    all resolved outputs, space separated
//	@OUTPUT0@   the n-th resolved output
//	@BASENAME@  input filename without directory and extension
//	@PLAINNAME@ input filename without directory
//
// Output patterns may additionally use @OBJSUFFIX@ and @EXESUFFIX@, which
// resolve against the platform descriptor passed to Expand.
type Rule struct {
	Name    string
	Command string
	Outputs []string
	Env     map[string]string
}

// PlaceholderRangeError is reported when a command references an output
// index the rule doesn't declare.
type PlaceholderRangeError struct {
	Rule        string
	Placeholder string
	Declared    int
}

func (e *PlaceholderRangeError) Error() string {
	return fmt.Sprintf("rule %s uses %s but only declares %d output(s)", e.Rule, e.Placeholder, e.Declared)
}

var outputIndexRe = regexp.MustCompile(`@OUTPUT(\d+)@`)

// Expand applies the rule to every input in order and returns one
// declaration per input. Expansion is deterministic: the same rule, input
// list and platform always yield identical declarations, with node names
// derived from the rule name and the input index.
func Expand(rule Rule, inputs []string, platform graph.Platform) ([]graph.Declaration, error) {
	if rule.Name == "" {
		return nil, eris.New("generator rule without a name")
	}
	if len(rule.Outputs) == 0 {
		return nil, eris.Errorf("rule %s declares no outputs", rule.Name)
	}

	decls := make([]graph.Declaration, 0, len(inputs))
	for idx, input := range inputs {
		plain := filepath.Base(input)
		base := strings.TrimSuffix(plain, filepath.Ext(plain))

		outputs := make([]string, len(rule.Outputs))
		for i, pattern := range rule.Outputs {
			out := strings.ReplaceAll(pattern, "@BASENAME@", base)
			out = strings.ReplaceAll(out, "@PLAINNAME@", plain)
			out = strings.ReplaceAll(out, "@OBJSUFFIX@", platform.ObjSuffix)
			out = strings.ReplaceAll(out, "@EXESUFFIX@", platform.ExeSuffix)
			outputs[i] = out
		}

		command, err := substituteCommand(rule, input, base, plain, outputs)
		if err != nil {
			return nil, err
		}

		decls = append(decls, graph.Declaration{
			Name:    fmt.Sprintf("%s@%d", rule.Name, idx),
			Kind:    graph.KindGeneratedFile,
			Inputs:  []string{input},
			Outputs: outputs,
			Command: command,
			Env:     rule.Env,
		})
	}

	return decls, nil
}

func substituteCommand(rule Rule, input, base, plain string, outputs []string) (string, error) {
	var rangeErr *PlaceholderRangeError
	command := outputIndexRe.ReplaceAllStringFunc(rule.Command, func(match string) string {
		idx, err := strconv.Atoi(outputIndexRe.FindStringSubmatch(match)[1])
		if err != nil || idx >= len(outputs) {
			if rangeErr == nil {
				rangeErr = &PlaceholderRangeError{
					Rule:        rule.Name,
					Placeholder: match,
					Declared:    len(outputs),
				}
			}
			return match
		}
		return outputs[idx]
	})
	if rangeErr != nil {
		return "", rangeErr
	}

	command = strings.ReplaceAll(command, "@OUTPUT@", strings.Join(outputs, " "))
	command = strings.ReplaceAll(command, "@INPUT@", input)
	command = strings.ReplaceAll(command, "@BASENAME@", base)
	command = strings.ReplaceAll(command, "@PLAINNAME@", plain)

	return command, nil
}
