// Package cli implements the cortex command line: generate, clean and watch.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/toyz/cortex/internal/config"
	"github.com/toyz/cortex/internal/utils"
)

// Version is the version reported by --version (set via -ldflags).
var Version = "dev"

type rootFlags struct {
	verbose    bool
	quiet      bool
	configPath string
	module     string
}

// reportedError marks an error whose diagnostics were already printed.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// app carries the shared state of one invocation.
type app struct {
	flags  *rootFlags
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the cortex command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{flags: &rootFlags{}, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "cortex",
		Short: "Generate component descriptors from //cortex:: annotations",
		Long: `cortex scans Go packages for //cortex:: annotations and writes a
descriptor table per package that the cortex runtime resolves at startup.

Directory patterns follow the go tool: ./... scans recursively, a plain
directory scans only that package.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "only print errors")
	pf.StringVar(&a.flags.configPath, "config", "", "project file (default cortex.yaml or cortex.toml in the working directory)")
	pf.StringVar(&a.flags.module, "module", "", "module path used when reporting packages (default from go.mod)")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(a.generateCommand(), a.cleanCommand(), a.watchCommand())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var reported reportedError
		if !stderrors.As(err, &reported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (a *app) generateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [patterns...]",
		Short: "Write the descriptor file of every annotated package",
		Example: `  cortex generate ./...
  cortex generate ./internal/services ./internal/store`,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, diagnostics, err := a.newGenerator()
			if err != nil {
				return a.report(err)
			}
			diagnostics.Header("generating descriptors")
			if err := g.Run(cmd.Context(), args); err != nil {
				return a.report(err)
			}
			a.printSummary(diagnostics, g.Summary())
			return nil
		},
	}
}

func (a *app) cleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [patterns...]",
		Short: "Remove generated descriptor files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return a.report(err)
			}
			diagnostics := a.diagnostics()
			removed, err := NewCleaner(cfg.Output).CleanGeneratedFiles(args)
			for _, path := range removed {
				diagnostics.PhaseItem("removed %s", path)
			}
			if err != nil {
				return a.report(err)
			}
			diagnostics.Complete(fmt.Sprintf("removed %d generated files", len(removed)))
			return nil
		},
	}
}

func (a *app) watchCommand() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [patterns...]",
		Short: "Regenerate descriptors whenever Go sources change",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, diagnostics, err := a.newGenerator()
			if err != nil {
				return a.report(err)
			}
			reporter := a.reporter()

			diagnostics.Header("watching for changes (Ctrl+C to stop)")
			if err := g.Run(cmd.Context(), args); err != nil {
				reporter.ReportError(err)
			} else {
				a.printSummary(diagnostics, g.Summary())
			}

			roots, _ := Roots(args)
			w, err := NewWatcher(WatchConfig{
				Roots:    roots,
				Output:   g.config.Output,
				Excluded: g.config.Excluded,
				Debounce: debounce,
				Stderr:   a.stderr,
				OnChange: func(ctx context.Context, changed []string) error {
					diagnostics.Info("%d file(s) changed, regenerating", len(changed))
					for _, path := range changed {
						diagnostics.Debug("changed: %s", path)
					}
					if err := g.Run(ctx, args); err != nil {
						reporter.ReportError(err)
						return nil
					}
					a.printSummary(diagnostics, g.Summary())
					return nil
				},
			})
			if err != nil {
				return a.report(err)
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before regenerating")
	return cmd
}

func (a *app) newGenerator() (*Generator, *utils.DiagnosticSystem, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	diagnostics := a.diagnostics()
	g, err := NewGenerator(cfg, diagnostics)
	if err != nil {
		return nil, nil, err
	}
	g.SetCustomModule(a.flags.module)
	if cfg.Source != "" {
		diagnostics.Verbose("config: %s", cfg.Source)
	}
	return g, diagnostics, nil
}

func (a *app) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if a.flags.configPath != "" {
		return loader.LoadFile(a.flags.configPath)
	}
	return loader.Load(".")
}

func (a *app) diagnostics() *utils.DiagnosticSystem {
	level := utils.DiagnosticInfo
	switch {
	case a.flags.quiet:
		level = utils.DiagnosticError
	case a.flags.verbose:
		level = utils.DiagnosticVerbose
	}
	d := utils.NewDiagnosticSystem(level)
	if a.stdout != os.Stdout || a.stderr != os.Stderr {
		d.SetOutput(a.stdout, a.stderr)
	}
	return d
}

func (a *app) reporter() *DiagnosticReporter {
	return NewDiagnosticReporter(a.stderr, a.flags.verbose, a.stderr == os.Stderr && !color.NoColor)
}

func (a *app) report(err error) error {
	a.reporter().ReportError(err)
	return reportedError{err: err}
}

func (a *app) printSummary(d *utils.DiagnosticSystem, s GenerationSummary) {
	d.Complete(fmt.Sprintf("%d packages, %d components, %d written, %d removed, %d unchanged",
		s.PackagesProcessed, s.ComponentsFound, len(s.GeneratedFiles), len(s.RemovedFiles), s.UnchangedFiles))
}
