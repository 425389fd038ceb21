package query

type UnitSummary struct {
	Name            string
	Kind            string
	File            string
	UseCount        int
	DependencyCount int
	DependentCount  int
}

type UnitDetails struct {
	Name string
	Kind string
	File string
	// Uses are the names as written, ignored modules removed.
	Uses         []string
	Dependencies []string
	Dependents   []string
	// Closure is set for programs only.
	Closure []string
}

type TraceResult struct {
	From  string
	To    string
	Path  []string
	Depth int
}

type ImpactResult struct {
	File string
	// Affected lists every file that must be rebuilt, File first.
	Affected []string
}
