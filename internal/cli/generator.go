package cli

import (
	"context"
	"time"

	"github.com/toyz/cortex/internal/annotations"
	"github.com/toyz/cortex/internal/config"
	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/generator"
	"github.com/toyz/cortex/internal/models"
	"github.com/toyz/cortex/internal/parser"
	"github.com/toyz/cortex/internal/utils"
)

// GenerationSummary counts what a run found and wrote.
type GenerationSummary struct {
	PackagesProcessed int
	ComponentsFound   int
	MarkersFound      int
	ProxiesFound      int
	GeneratedFiles    []string
	RemovedFiles      []string
	UnchangedFiles    int
}

// Generator runs discovery and code generation over a set of directories.
type Generator struct {
	config      *config.Config
	reader      *utils.FileReader
	scanner     *DirectoryScanner
	resolver    *ModuleResolver
	parser      *parser.Parser
	codegen     *generator.Generator
	diagnostics *utils.DiagnosticSystem
	module      string
	summary     GenerationSummary
}

// NewGenerator creates a generator for cfg; the configured aliases are registered up front.
func NewGenerator(cfg *config.Config, diagnostics *utils.DiagnosticSystem) (*Generator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if diagnostics == nil {
		diagnostics = utils.NewDiagnosticSystem(utils.DiagnosticSilent)
	}

	reg := annotations.NewRegistry()
	if err := cfg.RegisterAliases(reg); err != nil {
		return nil, err
	}

	reader := utils.NewFileReader()
	p := parser.NewParser(reader, annotations.NewParser(reg))
	p.SetOutputFile(cfg.Output)

	codegen := generator.NewGenerator()
	codegen.SetOutputFile(cfg.Output)
	codegen.SetMaxIterations(cfg.MaxIterations)

	return &Generator{
		config:      cfg,
		reader:      reader,
		scanner:     NewDirectoryScanner(cfg.Output, cfg.Excluded),
		resolver:    NewModuleResolver(reader),
		parser:      p,
		codegen:     codegen,
		diagnostics: diagnostics,
	}, nil
}

// SetCustomModule overrides the module name read from go.mod.
func (g *Generator) SetCustomModule(module string) {
	g.module = module
}

// Summary returns the counts of the last run.
func (g *Generator) Summary() GenerationSummary {
	return g.summary
}

// Run scans the patterns, parses every package and writes the generated files.
// Nothing is written when any package fails to parse.
func (g *Generator) Run(ctx context.Context, patterns []string) error {
	start := time.Now()
	g.summary = GenerationSummary{}
	d := g.diagnostics

	module, err := g.resolver.ResolveModuleName(g.module)
	if err != nil {
		d.Warn("module name unavailable, import paths are not reported: %v", err)
	} else {
		d.Debug("module: %s", module)
	}

	dirs, err := g.scanner.ScanDirectories(patterns)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return errors.New(errors.DiscoveryErrorCode, "no Go packages found").
			WithContext("patterns", patterns).
			WithSuggestion("check the directory patterns", "use ./... to scan recursively")
	}
	g.summary.PackagesProcessed = len(dirs)

	d.PhaseHeader("Discovery")
	var (
		packages []*models.PackageMetadata
		errs     []error
	)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkg, err := g.parser.ParseDirectory(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !pkg.IsEmpty() {
			d.PhaseItem("%s: %d components, %d markers", g.displayPath(module, dir), len(pkg.Components), len(pkg.Markers))
		}
		g.summary.ComponentsFound += len(pkg.Components)
		g.summary.MarkersFound += len(pkg.Markers)
		g.summary.ProxiesFound += len(pkg.Proxies)
		packages = append(packages, pkg)
	}
	if err := errors.Combine(errs...); err != nil {
		return err
	}

	d.PhaseHeader("Generation")
	for _, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, result, err := g.codegen.Sync(pkg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch result {
		case generator.Written:
			g.summary.GeneratedFiles = append(g.summary.GeneratedFiles, path)
			d.PhaseItem("wrote %s", path)
		case generator.Removed:
			g.summary.RemovedFiles = append(g.summary.RemovedFiles, path)
			d.PhaseItem("removed stale %s", path)
		default:
			if !pkg.IsEmpty() {
				g.summary.UnchangedFiles++
				d.Verbose("unchanged %s", path)
			}
		}
	}

	d.Debug("generation took %s", time.Since(start))
	return errors.Combine(errs...)
}

func (g *Generator) displayPath(module, dir string) string {
	if module == "" {
		return dir
	}
	importPath, err := g.resolver.BuildPackagePath(module, dir)
	if err != nil {
		return dir
	}
	return importPath
}
