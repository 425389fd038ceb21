package output

import (
	"fmt"
	"strings"

	"fortrandep/internal/engine/graph"
)

type TSVGenerator struct {
	project *graph.Project
}

func NewTSVGenerator(p *graph.Project) *TSVGenerator {
	return &TSVGenerator{project: p}
}

// Generate lists every resolved module edge with the files involved.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("From\tTo\tFromFile\tToFile\n")
	for _, from := range t.project.UnitNames() {
		fu, _ := t.project.Unit(from)
		for _, to := range t.project.ModuleDeps(from) {
			tu, _ := t.project.Unit(to)
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\n", from, to, fu.File, tu.File))
		}
	}
	return buf.String(), nil
}

// GenerateDiagnostics lists diagnostics one per row.
func (t *TSVGenerator) GenerateDiagnostics() (string, error) {
	var buf strings.Builder

	buf.WriteString("Kind\tModule\tReferrer\tFile\n")
	for _, d := range t.project.Diagnostics() {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\n", d.Kind, d.Module, d.Referrer, d.File))
	}
	return buf.String(), nil
}
