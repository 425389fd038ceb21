package graph

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// closureIDs walks the dependency adjacency from start with an explicit
// stack. The start unit is never part of the result, even on a cycle.
func (p *Project) closureIDs(start int) []int {
	visited := make([]bool, len(p.adj))
	visited[start] = true
	stack := append([]int(nil), p.adj[start]...)
	var out []int
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, id)
		stack = append(stack, p.adj[id]...)
	}
	return out
}

func (p *Project) closureNames(name string) []string {
	id, ok := p.syms.Lookup(name)
	if !ok {
		return nil
	}
	ids := p.closureIDs(id)
	names := make([]string, len(ids))
	for i, dep := range ids {
		names[i] = p.syms.Name(dep)
	}
	p.sortByFile(names)
	return names
}

// computeClosures fills the cache for every program. The registry is not
// modified here, so programs are walked in parallel.
func (p *Project) computeClosures(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	programs := p.Programs()
	results := make([][]string, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, prog := range programs {
		i, prog := i, prog
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.closureNames(prog.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.closureMu.Lock()
	for i, prog := range programs {
		p.closures[prog.Name] = results[i]
	}
	p.closureMu.Unlock()
	p.stage = StageClosuresComputed
	return nil
}

// Closure returns every unit name reachable from name through use
// statements, sorted by defining file. Program closures are precomputed;
// other units are walked on demand and cached.
func (p *Project) Closure(name string) ([]string, error) {
	name = strings.ToLower(name)
	if _, ok := p.units[name]; !ok {
		return nil, p.notFound(name)
	}
	p.closureMu.Lock()
	defer p.closureMu.Unlock()
	if c, ok := p.closures[name]; ok {
		return append([]string(nil), c...), nil
	}
	c := p.closureNames(name)
	p.closures[name] = c
	return append([]string(nil), c...), nil
}

// ClosureFiles returns the sorted, unique files needed to link name: the
// defining files of its closure plus its own file.
func (p *Project) ClosureFiles(name string) ([]string, error) {
	closure, err := p.Closure(name)
	if err != nil {
		return nil, err
	}
	u := p.units[strings.ToLower(name)]
	seen := map[string]bool{u.File: true}
	files := []string{u.File}
	for _, dep := range closure {
		f := p.units[dep].File
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}
