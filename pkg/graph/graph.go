// Package graph implements the target graph: declarations go in, a validated
// DAG with per-node build actions comes out. The package never runs anything;
// the only filesystem access is the source-file existence check during
// finalization.
package graph

// Kind describes what a node produces.
type Kind int

const (
	KindLibrary Kind = iota
	KindExecutable
	KindGeneratedFile
	KindCustomCommand
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindLibrary:
		return "library"
	case KindExecutable:
		return "executable"
	case KindGeneratedFile:
		return "generated-file"
	case KindCustomCommand:
		return "custom-command"
	case KindAlias:
		return "alias"
	}
	return "unknown"
}

// Declaration is the external description of a single target, as handed over
// by the configuring front end.
type Declaration struct {
	Name    string
	Kind    Kind
	Inputs  []string
	Outputs []string
	// Command is a shell snippet that produces Outputs from Inputs. Empty
	// for aliases.
	Command string
	// Env is applied on top of the ambient environment while Command runs.
	Env map[string]string
	// Deps lists explicit order dependencies by target name, in addition to
	// the implicit edges derived from Inputs.
	Deps []string
	// BuildByDefault marks the node for inclusion in plans with no requested
	// targets. Test and benchmark executables are expected to leave this
	// unset so a default build doesn't drag in every test binary.
	BuildByDefault bool
	Installable    bool
	InstallTag     string
}

// Node is a finalized target inside a Graph.
type Node struct {
	Declaration

	// index is the declaration order, used as a deterministic tie breaker.
	index      int
	deps       []*Node
	dependents []*Node
}

// Index returns the node's declaration position.
func (n *Node) Index() int { return n.index }

// Deps returns the nodes this node depends on.
func (n *Node) Deps() []*Node { return n.deps }

// Dependents returns the nodes that depend on this node.
func (n *Node) Dependents() []*Node { return n.dependents }

// Graph is an immutable, validated target DAG. All accessors are safe for
// concurrent use once Finalize has returned.
type Graph struct {
	nodes    []*Node
	byName   map[string]*Node
	byOutput map[string]*Node
	tests    []TestCase
	platform Platform
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Lookup returns the node with the given name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// NodeForOutput returns the node that declares the given output path.
func (g *Graph) NodeForOutput(path string) (*Node, bool) {
	n, ok := g.byOutput[path]
	return n, ok
}

// Tests returns all registered test cases in declaration order.
func (g *Graph) Tests() []TestCase { return g.tests }

// Platform returns the platform descriptor the graph was built for.
func (g *Graph) Platform() Platform { return g.platform }

// DefaultTargets returns the names of all nodes with BuildByDefault set.
func (g *Graph) DefaultTargets() []string {
	names := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.BuildByDefault {
			names = append(names, n.Name)
		}
	}
	return names
}
