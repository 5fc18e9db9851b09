package graph

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Stable alias targets synthesized during Finalize. External workflows
// depend on these names, they must not change between releases.
const (
	// MetaTestPrereq builds every test executable without running any test.
	MetaTestPrereq = "test-prereq"
	// MetaBenchmarkPrereq builds every benchmark executable.
	MetaBenchmarkPrereq = "benchmark-prereq"
)

// Builder collects declarations and turns them into a validated Graph.
// Output uniqueness is enforced at insertion time, everything else during
// Finalize.
type Builder struct {
	sourceRoot string
	platform   Platform
	nodes      []*Node
	byName     map[string]*Node
	byOutput   map[string]*Node
	tests      []TestCase
}

// NewBuilder creates a Builder. sourceRoot is the directory source-file
// inputs are resolved against.
func NewBuilder(sourceRoot string, platform Platform) *Builder {
	return &Builder{
		sourceRoot: sourceRoot,
		platform:   platform,
		byName:     make(map[string]*Node),
		byOutput:   make(map[string]*Node),
	}
}

// Add inserts one declaration. It fails with DuplicateTargetError or
// DuplicateOutputError; reference resolution is deferred to Finalize so
// declaration order doesn't matter.
func (b *Builder) Add(decl Declaration) error {
	if decl.Name == "" {
		return eris.New("declaration without a name")
	}

	if _, ok := b.byName[decl.Name]; ok {
		return &DuplicateTargetError{Name: decl.Name}
	}

	if decl.Kind == KindAlias && (len(decl.Outputs) > 0 || decl.Command != "") {
		return eris.Errorf("alias %s must not declare outputs or a command", decl.Name)
	}

	for _, out := range decl.Outputs {
		if prev, ok := b.byOutput[out]; ok {
			return &DuplicateOutputError{Output: out, First: prev.Name, Second: decl.Name}
		}
	}

	node := &Node{Declaration: decl, index: len(b.nodes)}
	b.nodes = append(b.nodes, node)
	b.byName[decl.Name] = node
	for _, out := range decl.Outputs {
		b.byOutput[out] = node
	}

	return nil
}

// AddTest registers a test case. The referenced target is validated during
// Finalize.
func (b *Builder) AddTest(tc TestCase) {
	b.tests = append(b.tests, tc)
}

// Finalize resolves all references, synthesizes the prerequisite
// meta-targets, verifies acyclicity and returns the immutable graph.
func (b *Builder) Finalize() (*Graph, error) {
	if err := b.addMetaTargets(); err != nil {
		return nil, err
	}

	for _, node := range b.nodes {
		seen := make(map[string]bool)

		for _, input := range node.Inputs {
			producer, ok := b.byOutput[input]
			if ok {
				if producer != node && !seen[producer.Name] {
					seen[producer.Name] = true
					node.deps = append(node.deps, producer)
					producer.dependents = append(producer.dependents, node)
				}
				continue
			}

			if err := b.checkSourceFile(input); err != nil {
				return nil, &UnresolvedReferenceError{Node: node.Name, Ref: input}
			}
		}

		for _, dep := range node.Declaration.Deps {
			depNode, ok := b.byName[dep]
			if !ok {
				return nil, &UnresolvedReferenceError{Node: node.Name, Ref: dep}
			}
			if depNode != node && !seen[dep] {
				seen[dep] = true
				node.deps = append(node.deps, depNode)
				depNode.dependents = append(depNode.dependents, node)
			}
		}
	}

	for _, tc := range b.tests {
		if _, ok := b.byName[tc.Target]; !ok {
			return nil, &UnresolvedReferenceError{Node: "test:" + tc.Name, Ref: tc.Target}
		}
	}

	if cycle := b.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	return &Graph{
		nodes:    b.nodes,
		byName:   b.byName,
		byOutput: b.byOutput,
		tests:    b.tests,
		platform: b.platform,
	}, nil
}

// addMetaTargets synthesizes the stable test-prereq/benchmark-prereq aliases
// whenever at least one test or benchmark exists. They are plain alias nodes
// without BuildByDefault, so requesting them explicitly is the only way they
// enter a plan.
func (b *Builder) addMetaTargets() error {
	var testDeps, benchDeps []string
	testSeen := make(map[string]bool)
	benchSeen := make(map[string]bool)

	for _, tc := range b.tests {
		if tc.IsBenchmark {
			if !benchSeen[tc.Target] {
				benchSeen[tc.Target] = true
				benchDeps = append(benchDeps, tc.Target)
			}
		} else if !testSeen[tc.Target] {
			testSeen[tc.Target] = true
			testDeps = append(testDeps, tc.Target)
		}
	}

	if len(testDeps) > 0 {
		if _, ok := b.byName[MetaTestPrereq]; !ok {
			err := b.Add(Declaration{Name: MetaTestPrereq, Kind: KindAlias, Deps: testDeps})
			if err != nil {
				return err
			}
		}
	}

	if len(benchDeps) > 0 {
		if _, ok := b.byName[MetaBenchmarkPrereq]; !ok {
			err := b.Add(Declaration{Name: MetaBenchmarkPrereq, Kind: KindAlias, Deps: benchDeps})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *Builder) checkSourceFile(path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.sourceRoot, path)
	}

	_, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", path)
	}
	return nil
}

// findCycle runs a DFS over the depends_on relation and returns the first
// cycle's node sequence, or nil if the graph is acyclic. Nodes are visited
// in declaration order so the reported cycle is deterministic.
func (b *Builder) findCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[*Node]int, len(b.nodes))
	var stack []*Node
	var cycle []string

	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		state[n] = inStack
		stack = append(stack, n)

		for _, dep := range n.deps {
			switch state[dep] {
			case inStack:
				// Slice the current stack from the first occurrence of dep
				// to get the cycle path.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				for _, s := range stack[start:] {
					cycle = append(cycle, s.Name)
				}
				cycle = append(cycle, dep.Name)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = done
		return false
	}

	for _, n := range b.nodes {
		if state[n] == unvisited && visit(n) {
			return cycle
		}
	}

	return nil
}
