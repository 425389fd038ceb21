package graph

import (
	"fmt"
	"sort"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/observability"
)

type DiagnosticKind string

const (
	DiagUnresolved DiagnosticKind = "unresolved"
	DiagAmbiguous  DiagnosticKind = "ambiguous"
	DiagCycle      DiagnosticKind = "cycle"
)

// Diagnostic is a non-fatal problem found while building a Project.
type Diagnostic struct {
	Kind DiagnosticKind
	// Module is the name the diagnostic is about.
	Module string
	// Referrer is the unit or file that raised it.
	Referrer string
	// File locates Referrer.
	File   string
	Detail string
}

// Fatal reports whether the diagnostic fails the run. Cycles are warnings.
func (d Diagnostic) Fatal() bool {
	return d.Kind != DiagCycle
}

func (d Diagnostic) String() string {
	if d.Detail != "" {
		return fmt.Sprintf("%s: %s (%s in %s)", d.Kind, d.Detail, d.Referrer, d.File)
	}
	return fmt.Sprintf("%s: %s (%s in %s)", d.Kind, d.Module, d.Referrer, d.File)
}

// Err converts the diagnostic to a DomainError.
func (d Diagnostic) Err() error {
	var err error
	switch d.Kind {
	case DiagUnresolved:
		err = domainErrors.Newf(domainErrors.CodeUnresolvedModule, "module %q is not defined in any source file", d.Module)
	case DiagAmbiguous:
		err = domainErrors.Newf(domainErrors.CodeAmbiguousModule, "unit %q is defined more than once", d.Module)
	default:
		err = domainErrors.New(domainErrors.CodeValidationError, d.String())
	}
	err = domainErrors.AddContext(err, domainErrors.CtxModule, d.Module)
	err = domainErrors.AddContext(err, domainErrors.CtxReferrer, d.Referrer)
	return domainErrors.AddContext(err, domainErrors.CtxPath, d.File)
}

type diagKey struct {
	kind     DiagnosticKind
	module   string
	referrer string
}

// report records d once per (kind, module, referrer).
func (p *Project) report(d Diagnostic) {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	key := diagKey{d.Kind, d.Module, d.Referrer}
	if p.diagSeen[key] {
		return
	}
	p.diagSeen[key] = true
	p.diags = append(p.diags, d)
	observability.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
}

// Diagnostics returns every diagnostic sorted by kind, module and referrer.
func (p *Project) Diagnostics() []Diagnostic {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	out := append([]Diagnostic(nil), p.diags...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Referrer < out[j].Referrer
	})
	return out
}

// Success is false when any fatal diagnostic was reported.
func (p *Project) Success() bool {
	for _, d := range p.Diagnostics() {
		if d.Fatal() {
			return false
		}
	}
	return true
}
