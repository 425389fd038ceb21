package graph

import (
	"sort"
	"strings"
)

// Cycles returns every elementary use cycle found by depth first search,
// each rotated to start at its smallest name.
func (p *Project) Cycles() [][]string {
	var cycles [][]string
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, name := range p.UnitNames() {
		if !visited[name] {
			p.findCycles(name, visited, onStack, nil, func(cycle []string) {
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			})
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})
	return cycles
}

func (p *Project) findCycles(curr string, visited, onStack map[string]bool, path []string, emit func([]string)) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range p.moduleDeps.Deps(curr) {
		if onStack[next] {
			for i, mod := range path {
				if mod == next {
					emit(rotate(append([]string(nil), path[i:]...)))
					break
				}
			}
		} else if !visited[next] {
			p.findCycles(next, visited, onStack, path, emit)
		}
	}

	onStack[curr] = false
}

func rotate(cycle []string) []string {
	lo := 0
	for i := range cycle {
		if cycle[i] < cycle[lo] {
			lo = i
		}
	}
	return append(cycle[lo:], cycle[:lo]...)
}

func (p *Project) reportCycles() {
	for _, cycle := range p.Cycles() {
		first := p.units[cycle[0]]
		p.report(Diagnostic{
			Kind:     DiagCycle,
			Module:   cycle[0],
			Referrer: strings.Join(cycle, " -> "),
			File:     first.File,
			Detail:   "use cycle " + strings.Join(append(cycle, cycle[0]), " -> "),
		})
	}
}

// UseChain returns the shortest chain of use statements leading from one
// unit to another.
func (p *Project) UseChain(from, to string) ([]string, bool) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if _, ok := p.units[from]; !ok {
		return nil, false
	}
	if _, ok := p.units[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := p.moduleDeps.Deps(curr)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					node = prev[node]
					path = append(path, node)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// Dependents returns changed plus every file that depends on it directly
// or transitively, in breadth first order.
func (p *Project) Dependents(changed string) []string {
	if !p.fileDeps.Has(changed) {
		return nil
	}
	rev := p.fileDeps.Reverse()

	out := []string{changed}
	seen := map[string]bool{changed: true}
	queue := []string{changed}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, importer := range rev.Deps(curr) {
			if seen[importer] {
				continue
			}
			seen[importer] = true
			out = append(out, importer)
			queue = append(queue, importer)
		}
	}
	return out
}
