// Package introspect projects the committed graph state into a stable,
// machine-readable snapshot for external tooling (editors, shell
// completion, CI). The snapshot reads only immutable graph data, so taking
// one while a build is executing is safe and never blocks.
package introspect

import (
	"encoding/json"
	"io"

	"github.com/mason-build/mason/pkg/graph"
	"github.com/mason-build/mason/pkg/options"
)

// TargetInfo describes one buildable target.
type TargetInfo struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Outputs        []string `json:"outputs,omitempty"`
	BuildByDefault bool     `json:"build_by_default"`
	Installed      bool     `json:"installed"`
	InstallTag     string   `json:"install_tag,omitempty"`
}

// TestInfo describes one test or benchmark.
type TestInfo struct {
	Name           string            `json:"name"`
	Suite          []string          `json:"suite"`
	Cmd            []string          `json:"cmd"`
	Env            map[string]string `json:"env,omitempty"`
	TimeoutSeconds float64           `json:"timeout,omitempty"`
	ShouldFail     bool              `json:"should_fail,omitempty"`
}

// OptionInfo describes one build option with enough metadata for completion
// tooling: enumerable options always carry their full choice set.
type OptionInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Value       interface{} `json:"value"`
	Choices     []string    `json:"choices,omitempty"`
	Description string      `json:"description,omitempty"`
}

// GraphView is the complete snapshot.
type GraphView struct {
	Targets    []TargetInfo `json:"targets"`
	Tests      []TestInfo   `json:"tests"`
	Benchmarks []TestInfo   `json:"benchmarks"`
	Options    []OptionInfo `json:"buildoptions"`
}

// Snapshot builds a GraphView from the graph and the configured options.
func Snapshot(g *graph.Graph, opts *options.Set) *GraphView {
	view := &GraphView{
		Targets:    []TargetInfo{},
		Tests:      []TestInfo{},
		Benchmarks: []TestInfo{},
		Options:    []OptionInfo{},
	}

	for _, node := range g.Nodes() {
		view.Targets = append(view.Targets, TargetInfo{
			Name:           node.Name,
			Type:           node.Kind.String(),
			Outputs:        node.Outputs,
			BuildByDefault: node.BuildByDefault,
			Installed:      node.Installable,
			InstallTag:     node.InstallTag,
		})
	}

	for _, tc := range g.Tests() {
		info := TestInfo{
			Name:           tc.Name,
			Suite:          tc.Suites,
			Cmd:            testCmd(g, tc),
			Env:            tc.Env,
			TimeoutSeconds: tc.Timeout.Seconds(),
			ShouldFail:     tc.ShouldFail,
		}
		if info.Suite == nil {
			info.Suite = []string{}
		}

		if tc.IsBenchmark {
			view.Benchmarks = append(view.Benchmarks, info)
		} else {
			view.Tests = append(view.Tests, info)
		}
	}

	if opts != nil {
		for _, opt := range opts.All() {
			view.Options = append(view.Options, OptionInfo{
				Name:        opt.Name,
				Type:        string(opt.Type),
				Value:       opt.Value,
				Choices:     opt.Choices(),
				Description: opt.Description,
			})
		}
	}

	return view
}

// WriteJSON serializes the snapshot.
func (v *GraphView) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func testCmd(g *graph.Graph, tc graph.TestCase) []string {
	exe := tc.Target
	if node, ok := g.Lookup(tc.Target); ok && len(node.Outputs) > 0 {
		exe = node.Outputs[0]
	}

	return append([]string{exe}, tc.Args...)
}
