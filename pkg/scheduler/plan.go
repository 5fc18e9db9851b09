package scheduler

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/mason-build/mason/pkg/graph"
)

// BuildPlan is the ordered subset of stale nodes to execute for one
// request. It is recomputed on every invocation and never outlives the run.
type BuildPlan struct {
	// Steps is a topological order of the stale subgraph; ties are broken
	// by declaration order so planning is deterministic.
	Steps    []*graph.Node
	contains map[string]bool
}

// Empty reports whether there is nothing to do.
func (p *BuildPlan) Empty() bool { return len(p.Steps) == 0 }

// Contains reports whether the named node is part of the plan.
func (p *BuildPlan) Contains(name string) bool { return p.contains[name] }

// Plan computes the minimal ordered set of stale actions for the requested
// targets. An empty target list defaults to every node with BuildByDefault
// set; test-only and benchmark-only nodes stay out of default builds unless
// pulled in through the prerequisite meta-targets. force treats every
// reachable node as stale.
func (s *Scheduler) Plan(targets []string, force bool) (*BuildPlan, error) {
	needed, err := s.closure(targets)
	if err != nil {
		return nil, err
	}

	ordered := topoOrder(needed)

	// Walk in dependency order so upstream staleness propagates: a dirty
	// dependency makes every dependent dirty even if its own fingerprints
	// still match.
	dirty := make(map[*graph.Node]bool, len(ordered))
	plan := &BuildPlan{contains: make(map[string]bool)}
	for _, node := range ordered {
		d := force && node.Command != ""
		if !d {
			for _, dep := range node.Deps() {
				if dirty[dep] {
					d = true
					break
				}
			}
		}
		if !d {
			d = s.isStale(node)
		}

		if !d {
			continue
		}
		dirty[node] = true

		if node.Command != "" {
			plan.Steps = append(plan.Steps, node)
			plan.contains[node.Name] = true
		}
	}

	return plan, nil
}

// AssertFresh implements the no-rebuild escape hatch: instead of planning
// and executing it verifies that the recorded state is still valid for the
// requested targets and fails fast otherwise.
func (s *Scheduler) AssertFresh(targets []string) error {
	plan, err := s.Plan(targets, false)
	if err != nil {
		return err
	}

	if !plan.Empty() {
		names := make([]string, len(plan.Steps))
		for i, node := range plan.Steps {
			names[i] = node.Name
		}
		return &StaleWithoutRebuildError{Nodes: names}
	}

	return nil
}

// closure resolves target names and collects them plus all transitive
// dependencies.
func (s *Scheduler) closure(targets []string) (map[*graph.Node]bool, error) {
	if len(targets) == 0 {
		targets = s.graph.DefaultTargets()
	}

	needed := make(map[*graph.Node]bool)
	var collect func(n *graph.Node)
	collect = func(n *graph.Node) {
		if needed[n] {
			return
		}
		needed[n] = true
		for _, dep := range n.Deps() {
			collect(dep)
		}
	}

	for _, name := range targets {
		node, ok := s.graph.Lookup(name)
		if !ok {
			return nil, eris.Errorf("unknown target %s", name)
		}
		collect(node)
	}

	return needed, nil
}

// topoOrder runs Kahn's algorithm over the subgraph induced by needed,
// always picking the ready node with the lowest declaration index.
func topoOrder(needed map[*graph.Node]bool) []*graph.Node {
	indeg := make(map[*graph.Node]int, len(needed))
	for node := range needed {
		for _, dep := range node.Deps() {
			if needed[dep] {
				indeg[node]++
			}
		}
	}

	var ready []*graph.Node
	for node := range needed {
		if indeg[node] == 0 {
			ready = append(ready, node)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Index() < ready[j].Index() })

	ordered := make([]*graph.Node, 0, len(needed))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		ordered = append(ordered, node)

		for _, dep := range node.Dependents() {
			if !needed[dep] {
				continue
			}
			indeg[dep]--
			if indeg[dep] == 0 {
				ready = insertByIndex(ready, dep)
			}
		}
	}

	return ordered
}

func insertByIndex(nodes []*graph.Node, node *graph.Node) []*graph.Node {
	pos := sort.Search(len(nodes), func(i int) bool { return nodes[i].Index() > node.Index() })
	nodes = append(nodes, nil)
	copy(nodes[pos+1:], nodes[pos:])
	nodes[pos] = node
	return nodes
}
