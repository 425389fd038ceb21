package main

import (
	"fmt"
	"io"
	"strings"

	"fortrandep/internal/core/app"
	"fortrandep/internal/data/query"

	"github.com/spf13/cobra"
)

func newQueryCommand(opts *rootOptions) *cobra.Command {
	flags := &projectFlags{}
	var (
		unit   string
		trace  string
		impact string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "query [CQL]",
		Short: "Inspect the analyzed project without writing rules",
		Long: `query analyzes the project and answers one question:

  fortrandep query "SELECT units WHERE kind = 'module' AND dependents > 3"
  fortrandep query --unit solver
  fortrandep query --trace main:kinds
  fortrandep query --impact src/kinds.f90

CQL fields: name, kind, file (=, !=, CONTAINS) and uses, dependencies,
dependents (=, !=, <, <=, >, >=).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectConfig(cmd, opts, flags, nil)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			_, project, err := a.Build(cmd.Context())
			if err != nil {
				return err
			}
			svc := query.NewService(project)
			ctx := cmd.Context()

			switch {
			case unit != "":
				details, err := svc.UnitDetails(ctx, unit)
				if err != nil {
					return err
				}
				printDetails(opts.out, details)
			case trace != "":
				from, to, ok := strings.Cut(trace, ":")
				if !ok {
					return fmt.Errorf("--trace expects FROM:TO, got %q", trace)
				}
				res, err := svc.DependencyTrace(ctx, from, to, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.out, strings.Join(res.Path, " -> "))
			case impact != "":
				res, err := svc.Impact(ctx, impact)
				if err != nil {
					return err
				}
				for _, f := range res.Affected {
					fmt.Fprintln(opts.out, f)
				}
			default:
				raw := "SELECT units"
				if len(args) == 1 {
					raw = args[0]
				}
				rows, err := svc.ExecuteCQL(ctx, raw, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.out, "Name\tKind\tFile\tUses\tDependencies\tDependents")
				for _, r := range rows {
					fmt.Fprintf(opts.out, "%s\t%s\t%s\t%d\t%d\t%d\n", r.Name, r.Kind, r.File, r.UseCount, r.DependencyCount, r.DependentCount)
				}
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&unit, "unit", "", "print details of one unit")
	cmd.Flags().StringVar(&trace, "trace", "", "print the shortest use chain FROM:TO")
	cmd.Flags().StringVar(&impact, "impact", "", "print files rebuilt when FILE changes")
	cmd.Flags().IntVar(&limit, "limit", 0, "row limit, or maximum depth for --trace")
	return cmd
}

func printDetails(w io.Writer, d query.UnitDetails) {
	fmt.Fprintf(w, "%s %s (%s)\n", d.Kind, d.Name, d.File)
	fmt.Fprintf(w, "  uses:         %s\n", strings.Join(d.Uses, " "))
	fmt.Fprintf(w, "  dependencies: %s\n", strings.Join(d.Dependencies, " "))
	fmt.Fprintf(w, "  dependents:   %s\n", strings.Join(d.Dependents, " "))
	if d.Kind == "program" {
		fmt.Fprintf(w, "  closure:      %s\n", strings.Join(d.Closure, " "))
	}
}
