package output

import (
	"fmt"
	"strings"

	"fortrandep/internal/engine/graph"
	"fortrandep/internal/shared/util"
)

type DOTGenerator struct {
	project *graph.Project
}

func NewDOTGenerator(p *graph.Project) *DOTGenerator {
	return &DOTGenerator{project: p}
}

// Generate renders the module use graph. Programs are drawn as ellipses,
// cycle edges in red, and unresolved uses as dashed grey nodes.
func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n\n")

	cycles := d.project.Cycles()
	cycleEdges := make(map[string]map[string]bool)
	inCycle := make(map[string]bool)
	for _, cycle := range cycles {
		for i := 0; i < len(cycle); i++ {
			from := cycle[i]
			to := cycle[(i+1)%len(cycle)]
			if cycleEdges[from] == nil {
				cycleEdges[from] = make(map[string]bool)
			}
			cycleEdges[from][to] = true
			inCycle[from] = true
		}
	}

	for _, name := range d.project.UnitNames() {
		u, _ := d.project.Unit(name)
		label := fmt.Sprintf("%s\\n%s", name, u.File)
		attrs := fmt.Sprintf("label=\"%s\", color=\"darkslategrey\"", label)
		if u.IsProgram() {
			attrs += ", shape=ellipse"
		}
		if inCycle[name] {
			attrs += ", style=\"rounded,filled\", fillcolor=\"mistyrose\", color=\"red\", penwidth=2.0"
		}
		buf.WriteString(fmt.Sprintf("  %q [%s];\n", name, attrs))
	}

	unresolved := make(map[string]bool)
	for _, diag := range d.project.Diagnostics() {
		if diag.Kind == graph.DiagUnresolved {
			unresolved[diag.Module] = true
		}
	}
	if len(unresolved) > 0 {
		buf.WriteString("\n  // Unresolved\n")
		for _, name := range util.SortedStringKeys(unresolved) {
			buf.WriteString(fmt.Sprintf("  %q [style=dashed, color=\"grey\"];\n", name))
		}
	}
	buf.WriteString("\n")

	for _, from := range d.project.UnitNames() {
		for _, to := range d.project.UnitUses(from) {
			switch {
			case cycleEdges[from][to]:
				buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to))
			case unresolved[to]:
				buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"grey\", style=dashed];\n", from, to))
			default:
				buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"forestgreen\"];\n", from, to))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
