package graph

import (
	"fmt"
	"strings"
)

// UnresolvedReferenceError is reported when a declared input neither matches
// an existing source file nor any other node's declared output.
type UnresolvedReferenceError struct {
	Node string
	Ref  string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("target %s references %s which is neither a source file nor a declared output", e.Node, e.Ref)
}

// DuplicateOutputError is reported when two nodes claim the same output path.
type DuplicateOutputError struct {
	Output string
	First  string
	Second string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output %s is declared by both %s and %s", e.Output, e.First, e.Second)
}

// CyclicDependencyError is reported when the depends_on relation contains a
// cycle. Cycle holds the offending node sequence; the first and last entry
// are the same node.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// DuplicateTargetError is reported when two declarations use the same name.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %s is declared twice", e.Name)
}
