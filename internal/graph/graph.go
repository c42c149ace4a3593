// Package graph validates the dependency graph formed by a process list's
// predecessor references: every predecessor must name a process
// that is actually in the list, and the graph must contain no cycles.
package graph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/koyomi-batch/koyomi/internal/exception"
	"github.com/koyomi-batch/koyomi/internal/proclist"
)

const moduleName = "graph"

// Node is one validated graph node: a process plus its predecessor names.
type Node struct {
	Process      proclist.Process
	Predecessors []string
}

// Graph is the validated dependency graph over a process list.
type Graph struct {
	nodes map[string]*Node
	order []string // natural order, as parsed
}

// Validate builds a Graph from the parsed process list, returning an
// aggregate error (via go-multierror) naming every undefined predecessor,
// rather than stopping at the first one. Cycle detection runs only once
// every predecessor resolves, and reports the first cycle found.
func Validate(processes []proclist.Process) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(processes))}

	for _, p := range processes {
		g.nodes[p.Name] = &Node{Process: p, Predecessors: p.Predecessors}
		g.order = append(g.order, p.Name)
	}

	var result error

	for _, name := range g.order {
		for _, pred := range g.nodes[name].Predecessors {
			if _, ok := g.nodes[pred]; !ok {
				result = multierror.Append(result, fmt.Errorf(
					"process %q references undefined predecessor %q", name, pred))
			}
		}
	}

	if result != nil {
		return nil, exception.Fatal(moduleName, "process list failed validation", result)
	}

	if chain := g.findCycle(); chain != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf(
			"deadly embrace detected: %s", formatChain(chain)), nil)
	}

	return g, nil
}

// findCycle runs a recursive depth-first search over the predecessor
// edges and returns the full chain of names forming the first cycle it
// encounters, or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.order))
	parent := make(map[string]string, len(g.order))

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		for _, pred := range g.nodes[name].Predecessors {
			switch color[pred] {
			case white:
				parent[pred] = name
				if chain := visit(pred); chain != nil {
					return chain
				}
			case gray:
				return buildChain(name, pred, parent)
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range g.order {
		if color[name] == white {
			if chain := visit(name); chain != nil {
				return chain
			}
		}
	}
	return nil
}

// buildChain walks parent pointers from "from" back up to "to" (the
// process being re-entered, closing the cycle) and returns the chain in
// execution order, e.g. [A B C A] for A -> B -> C -> A.
func buildChain(from, to string, parent map[string]string) []string {
	chain := []string{from}
	cur := from
	for cur != to {
		cur = parent[cur]
		chain = append(chain, cur)
	}
	// chain is currently leaf-to-root (from -> ... -> to); reverse it so it
	// reads in execution order, then close the loop back to to.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	chain = append(chain, to)
	return chain
}

func formatChain(chain []string) string {
	out := ""
	for i, name := range chain {
		if i > 0 {
			out += " -> "
		}
		out += name
	}
	return out
}

// LaunchOrder returns the process names in the order they were declared,
// which doubles as the natural_order column; the scheduler loop
// itself determines actual launch order at runtime from predecessor
// completion, not from this slice.
func (g *Graph) LaunchOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Node looks up a validated node by process name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Processes returns every node in natural order.
func (g *Graph) Processes() []proclist.Process {
	out := make([]proclist.Process, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name].Process)
	}
	return out
}
