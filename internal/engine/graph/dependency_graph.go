package graph

import "sort"

// DependencyGraph maps a node to its ordered, duplicate-free direct
// dependencies. Nodes are unit names or file paths depending on use.
type DependencyGraph struct {
	edges map[string][]string
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{edges: make(map[string][]string)}
}

// Set replaces the dependencies of node, dropping repeats.
func (g *DependencyGraph) Set(node string, deps []string) {
	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	g.edges[node] = out
}

// Deps returns a copy of node's dependencies.
func (g *DependencyGraph) Deps(node string) []string {
	return append([]string(nil), g.edges[node]...)
}

func (g *DependencyGraph) Has(node string) bool {
	_, ok := g.edges[node]
	return ok
}

// Nodes returns every node in sorted order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, 0, len(g.edges))
	for n := range g.edges {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Reverse returns a graph with every edge flipped. Dependents are sorted.
func (g *DependencyGraph) Reverse() *DependencyGraph {
	rev := NewDependencyGraph()
	for _, node := range g.Nodes() {
		if _, ok := rev.edges[node]; !ok {
			rev.edges[node] = nil
		}
		for _, dep := range g.edges[node] {
			rev.edges[dep] = append(rev.edges[dep], node)
		}
	}
	return rev
}
