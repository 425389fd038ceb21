package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fortrandep/internal/core/app"
	"fortrandep/internal/core/config"
	"fortrandep/internal/shared/observability"
	"fortrandep/internal/shared/util"
	"fortrandep/internal/ui/cli"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errFailed makes the process exit 1 after output was already printed.
var errFailed = errors.New("dependency generation reported problems")

type rootOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	out        io.Writer
}

// projectFlags mirrors the config fields that can be set on the command
// line. Only flags the user actually set override the file.
type projectFlags struct {
	dirs             string
	preprocess       bool
	exclude          string
	ignoreMods       string
	noDefaultIgnores bool
	macros           string
	searchPaths      string
	output           string
	build            string
	overwrite        bool
	skipPrograms     bool
	emitIncludes     bool
	relativeTo       string
	dot              string
	tsv              string
	workers          int
	history          bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}
	gen := &projectFlags{}

	root := &cobra.Command{
		Use:   "fortrandep [files...]",
		Short: "Generate Makefile dependency rules for Fortran projects",
		Long: `fortrandep scans Fortran sources for module and program units and the
modules they use, then writes object and executable rules that a Makefile
can include.

List options accept space or comma separated values.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, gen, args)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default "+config.DefaultFile+" when present)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print errors")
	gen.register(root.Flags())

	root.AddCommand(
		newGenerateCommand(opts),
		newWatchCommand(opts),
		newPreprocessCommand(opts),
		newObjectsCommand(opts),
		newQueryCommand(opts),
		newHistoryCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

func (f *projectFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.dirs, "dirs", "", "directories searched for sources when no files are given")
	fs.BoolVar(&f.preprocess, "preprocess", false, "run the preprocessor on files containing directives")
	fs.StringVar(&f.exclude, "exclude", "", "files or glob patterns to exclude")
	fs.StringVar(&f.ignoreMods, "ignore-mods", "", "module names to ignore")
	fs.BoolVar(&f.noDefaultIgnores, "no-default-ignores", false, "do not ignore the intrinsic modules")
	fs.StringVar(&f.macros, "macros", "", "NAME or NAME=VALUE macro definitions")
	fs.StringVar(&f.searchPaths, "search-paths", "", "include search paths for the preprocessor")
	fs.StringVarP(&f.output, "output", "o", "", "rule file to write (default depends.mak)")
	fs.StringVar(&f.build, "build", "", "directory where object files live")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace an existing rule file")
	fs.BoolVar(&f.skipPrograms, "skip-programs", false, "do not emit executable rules")
	fs.BoolVar(&f.emitIncludes, "emit-includes", false, "add include files to object prerequisites")
	fs.StringVar(&f.relativeTo, "relative-to", "", "write source paths relative to this directory")
	fs.StringVar(&f.dot, "dot", "", "also write a Graphviz view of the module graph")
	fs.StringVar(&f.tsv, "tsv", "", "also write a tab separated edge list")
	fs.IntVarP(&f.workers, "workers", "j", 0, "parallel workers (default number of CPUs)")
	fs.BoolVar(&f.history, "history", false, "record the run in the history database")
}

// apply layers set flags over cfg. Positional files replace the search
// directories unless --dirs was also given.
func (f *projectFlags) apply(fs *pflag.FlagSet, cfg *config.Config, files []string) {
	if len(files) > 0 {
		cfg.Files = files
		if !fs.Changed("dirs") {
			cfg.SearchDirs = nil
		}
	}
	if fs.Changed("dirs") {
		cfg.SearchDirs = util.SplitList(f.dirs)
	}
	if fs.Changed("preprocess") {
		cfg.Preprocess = f.preprocess
	}
	if fs.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, util.SplitList(f.exclude)...)
	}
	if fs.Changed("ignore-mods") {
		cfg.IgnoreModules = append(cfg.IgnoreModules, util.SplitList(f.ignoreMods)...)
	}
	if fs.Changed("no-default-ignores") {
		cfg.NoDefaultIgnores = f.noDefaultIgnores
	}
	if fs.Changed("macros") {
		cfg.Macros = append(cfg.Macros, util.SplitList(f.macros)...)
	}
	if fs.Changed("search-paths") {
		cfg.IncludePaths = append(cfg.IncludePaths, util.SplitList(f.searchPaths)...)
	}
	if fs.Changed("output") {
		cfg.Output.Path = f.output
	}
	if fs.Changed("build") {
		cfg.Output.BuildDir = f.build
	}
	if fs.Changed("overwrite") {
		cfg.Output.Overwrite = f.overwrite
	}
	if fs.Changed("skip-programs") {
		cfg.Output.SkipPrograms = f.skipPrograms
	}
	if fs.Changed("emit-includes") {
		cfg.Output.EmitIncludes = f.emitIncludes
	}
	if fs.Changed("relative-to") {
		cfg.Output.RelativeTo = f.relativeTo
	}
	if fs.Changed("dot") {
		cfg.Output.DOT = f.dot
	}
	if fs.Changed("tsv") {
		cfg.Output.TSV = f.tsv
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("history") {
		cfg.History.Enabled = f.history
	}
}

// loadConfig reads the config file and sets up logging from it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultFile)
	}
	if err != nil {
		return nil, err
	}
	o.setupLogging(cfg)
	return cfg, nil
}

func (o *rootOptions) setupLogging(cfg *config.Config) {
	level := cfg.Log.SlogLevel()
	if o.verbose {
		level = slog.LevelDebug
	}
	if o.quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (o *rootOptions) print(s string) {
	if o.quiet {
		return
	}
	fmt.Fprint(o.out, s)
}

// projectConfig loads the file, layers flags on top and validates the
// result.
func projectConfig(cmd *cobra.Command, opts *rootOptions, flags *projectFlags, args []string) (*config.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	flags.apply(cmd.Flags(), cfg, args)
	return config.Finalize(cfg)
}

// startTracing installs the OTLP exporter when configured. The returned
// func flushes it.
func startTracing(ctx context.Context, cfg *config.Config) func() {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: versionString,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

func runGenerate(cmd *cobra.Command, opts *rootOptions, flags *projectFlags, args []string) error {
	cfg, err := projectConfig(cmd, opts, flags, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer startTracing(ctx, cfg)()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Generate(ctx)
	if err != nil {
		return err
	}
	opts.print(cli.RenderSummary(res))
	if !res.Success() {
		return errFailed
	}
	return nil
}

func newGenerateCommand(opts *rootOptions) *cobra.Command {
	flags := &projectFlags{}
	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Write the dependency rule file (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, flags, args)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	flags := &projectFlags{}
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Regenerate the rule file whenever a source changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectConfig(cmd, opts, flags, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Observability.MetricsAddr = metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer startTracing(ctx, cfg)()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var server *cli.ObservabilityServer
			if cfg.Observability.MetricsAddr != "" {
				server = cli.NewObservabilityServer(cfg.Observability.MetricsAddr)
				if err := server.Start(ctx); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Stop(shutdownCtx)
				}()
			}

			return a.Watch(ctx, func(res *app.Result) {
				if server != nil {
					server.Record(res)
				}
				opts.print(cli.RenderSummary(res))
			})
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	return cmd
}

func newPreprocessCommand(opts *rootOptions) *cobra.Command {
	var (
		macros    string
		search    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "preprocess INPUT OUTPUT",
		Short: "Resolve the directives of one file and write the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("macros") {
				cfg.Macros = append(cfg.Macros, util.SplitList(macros)...)
			}
			if cmd.Flags().Changed("search") {
				cfg.IncludePaths = append(cfg.IncludePaths, util.SplitList(search)...)
			}
			if len(cfg.IncludePaths) == 0 {
				cfg.IncludePaths = []string{"."}
			}
			if cfg, err = config.Finalize(cfg); err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			slog.Debug("preprocessing", "macros", strings.Join(a.Macros().Names(), ","), "search", cfg.IncludePaths)
			if err := a.PreprocessFile(cmd.Context(), args[0], args[1], overwrite); err != nil {
				return err
			}
			opts.print("Output written to: " + args[1] + "\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&macros, "macros", "", "NAME or NAME=VALUE macro definitions")
	cmd.Flags().StringVar(&search, "search", "", "include search paths")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing output file")
	return cmd
}

func newObjectsCommand(opts *rootOptions) *cobra.Command {
	var (
		ext       string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "objects DEPFILE OUTPUT",
		Short: "Write the object list recorded in a generated rule file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ext") {
				cfg.Output.ObjectExt = ext
				if cfg, err = config.Finalize(cfg); err != nil {
					return err
				}
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.WriteObjects(args[0], args[1], overwrite)
			if err != nil {
				return err
			}
			opts.print(args[1] + ": " + status.String() + "\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "object file extension (default .o)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "replace an existing output file")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.History.Enabled = true
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			store := a.History()
			if store == nil {
				return fmt.Errorf("history database %s could not be opened", cfg.History.Path)
			}

			if runID != "" {
				diags, err := store.Diagnostics(cmd.Context(), runID)
				if err != nil {
					return err
				}
				for _, d := range diags {
					fmt.Fprintf(opts.out, "%s\t%s\t%s\t%s\n", d.Kind, d.Module, d.Referrer, d.File)
				}
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(opts.out, cli.RenderHistory(runs, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "print the diagnostics of one run")
	return cmd
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(opts.out, "fortrandep v%s\n", versionString)
		},
	}
}
