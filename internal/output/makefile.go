package output

import (
	"path"
	"path/filepath"
	"strings"

	"fortrandep/internal/engine/graph"
)

// Header opens every generated file.
const Header = "#\n# This file is generated automatically. DO NOT EDIT!\n#\n"

const (
	DefaultObjectExt        = ".o"
	DefaultExecutablePrefix = "bin/"
)

type MakeOptions struct {
	BuildDir  string
	ObjectExt string
	// SkipPrograms suppresses executable link rules.
	SkipPrograms bool
	ExePrefix    string
	// Executables overrides the target name per program.
	Executables map[string]string
	// EmitIncludes appends resolved include files to each object rule.
	EmitIncludes bool
	// ResolveInclude locates Fortran include statement targets when
	// EmitIncludes is set. Unresolvable names are left out.
	ResolveInclude func(name string) (string, bool)
	// BaseDir, when set, makes source paths in the output relative to it.
	BaseDir string
}

// Rule is one target line.
type Rule struct {
	Target  string
	Prereqs []string
}

func (r Rule) String() string {
	if len(r.Prereqs) == 0 {
		return r.Target + " :"
	}
	return r.Target + " : " + strings.Join(r.Prereqs, " ")
}

type MakeGenerator struct {
	project *graph.Project
	opts    MakeOptions
}

func NewMakeGenerator(p *graph.Project, opts MakeOptions) *MakeGenerator {
	if opts.ObjectExt == "" {
		opts.ObjectExt = DefaultObjectExt
	}
	if opts.ExePrefix == "" {
		opts.ExePrefix = DefaultExecutablePrefix
	}
	return &MakeGenerator{project: p, opts: opts}
}

// ObjectName maps a source path to its object in the build directory.
func (m *MakeGenerator) ObjectName(source string) string {
	return ObjectPath(m.opts.BuildDir, source, m.opts.ObjectExt)
}

// ObjectPath returns buildDir/<basename without extension><ext> with
// forward slashes.
func ObjectPath(buildDir, source, ext string) string {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ext
	if buildDir == "" {
		return name
	}
	return path.Join(filepath.ToSlash(buildDir), name)
}

// ExecutableName returns the link target for a program.
func (m *MakeGenerator) ExecutableName(program string) string {
	if exe, ok := m.opts.Executables[program]; ok && exe != "" {
		return filepath.ToSlash(exe)
	}
	return m.opts.ExePrefix + program
}

func (m *MakeGenerator) sourcePath(p string) string {
	if m.opts.BaseDir != "" {
		if rel, err := filepath.Rel(m.opts.BaseDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return filepath.ToSlash(p)
}

// FileRules returns one rule per source file, sorted by path.
func (m *MakeGenerator) FileRules() []Rule {
	var rules []Rule
	for _, f := range m.project.Files() {
		var prereqs []string
		for _, dep := range m.project.FileDeps(f.Path) {
			prereqs = append(prereqs, m.ObjectName(dep))
		}
		prereqs = append(prereqs, m.sourcePath(f.Path))
		if m.opts.EmitIncludes {
			for _, inc := range f.CppIncludes {
				prereqs = append(prereqs, m.sourcePath(inc))
			}
			if m.opts.ResolveInclude != nil {
				for _, name := range f.Includes {
					if p, ok := m.opts.ResolveInclude(name); ok {
						prereqs = append(prereqs, m.sourcePath(p))
					}
				}
			}
		}
		rules = append(rules, Rule{Target: m.ObjectName(f.Path), Prereqs: dedupe(prereqs)})
	}
	return rules
}

// ProgramRules returns one link rule per program, sorted by program name.
func (m *MakeGenerator) ProgramRules() ([]Rule, error) {
	if m.opts.SkipPrograms {
		return nil, nil
	}
	var rules []Rule
	for _, prog := range m.project.Programs() {
		files, err := m.project.ClosureFiles(prog.Name)
		if err != nil {
			return nil, err
		}
		prereqs := make([]string, 0, len(files))
		for _, f := range files {
			prereqs = append(prereqs, m.ObjectName(f))
		}
		rules = append(rules, Rule{Target: m.ExecutableName(prog.Name), Prereqs: dedupe(prereqs)})
	}
	return rules, nil
}

// Generate renders the complete dependency file.
func (m *MakeGenerator) Generate() (string, error) {
	programs, err := m.ProgramRules()
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString(Header)
	buf.WriteString("#: build_dir = " + filepath.ToSlash(m.opts.BuildDir) + "\n")
	for _, f := range m.project.Files() {
		buf.WriteString("#: " + m.sourcePath(f.Path) + "\n")
	}
	for _, r := range m.FileRules() {
		buf.WriteString("\n" + r.String() + "\n")
	}
	for _, r := range programs {
		buf.WriteString("\n" + r.String() + "\n")
	}
	return buf.String(), nil
}

// dedupe removes repeats and keeps the first occurrence order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
