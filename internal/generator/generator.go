// Package generator turns package metadata into the generated descriptor file
// and keeps it in sync on disk.
package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"

	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/models"
	"github.com/toyz/cortex/internal/parser"
	"github.com/toyz/cortex/internal/templates"
	"github.com/toyz/cortex/internal/utils"
)

// GeneratedFile is the rendered output for one package.
type GeneratedFile struct {
	PackageName string
	FilePath    string
	Content     []byte
	Components  int
}

// WriteResult describes what Write did with a generated file.
type WriteResult int

const (
	Unchanged WriteResult = iota
	Written
	Removed
)

func (r WriteResult) String() string {
	switch r {
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// Generator renders and writes descriptor files.
type Generator struct {
	output        string
	maxIterations int
	options       *imports.Options
}

// NewGenerator creates a generator writing parser.DefaultOutputFile.
func NewGenerator() *Generator {
	return &Generator{
		output: parser.DefaultOutputFile,
		options: &imports.Options{
			Comments:   true,
			TabIndent:  true,
			TabWidth:   8,
			FormatOnly: true,
		},
	}
}

// SetOutputFile changes the name of the generated file.
func (g *Generator) SetOutputFile(name string) {
	if name != "" {
		g.output = name
	}
}

// SetMaxIterations makes generated files expose a Config with the given budget.
func (g *Generator) SetMaxIterations(n int) {
	g.maxIterations = n
}

// OutputFile returns the name of the generated file.
func (g *Generator) OutputFile() string { return g.output }

// Generate renders the descriptor file of a package. It returns nil when the
// package declares nothing to generate.
func (g *Generator) Generate(pkg *models.PackageMetadata) (*GeneratedFile, error) {
	if pkg == nil {
		return nil, fmt.Errorf("metadata cannot be nil")
	}
	if pkg.IsEmpty() {
		return nil, nil
	}

	src, err := templates.RenderComponentsWith(pkg, templates.Options{MaxIterations: g.maxIterations})
	if err != nil {
		return nil, errors.Wrap(errors.TemplateErrorCode, "failed to render template", err).
			WithContext("package", pkg.PackageName)
	}

	path := filepath.Join(pkg.PackagePath, g.output)
	formatted, err := imports.Process(path, []byte(src), g.options)
	if err != nil {
		return nil, errors.Wrap(errors.GenerationErrorCode, "generated code does not compile", err).
			WithLocation(errors.SourceLocation{File: path}).
			WithSuggestion("check the annotated types for unsupported constructs")
	}

	return &GeneratedFile{
		PackageName: pkg.PackageName,
		FilePath:    path,
		Content:     formatted,
		Components:  len(pkg.Components),
	}, nil
}

// Write stores the file on disk, skipping the write when the content is unchanged.
func (g *Generator) Write(file *GeneratedFile) (WriteResult, error) {
	existing, err := os.ReadFile(file.FilePath)
	if err == nil && bytes.Equal(existing, file.Content) {
		return Unchanged, nil
	}
	if err == nil {
		if generated, _ := utils.IsGenerated(file.FilePath); !generated {
			return Unchanged, errors.Newf(errors.FileSystemErrorCode, "refusing to overwrite %s", file.FilePath).
				WithSuggestion("the file was not written by cortex; rename it or choose another output file")
		}
	}
	if err := os.WriteFile(file.FilePath, file.Content, 0o644); err != nil {
		return Unchanged, errors.FileSystemError("write", file.FilePath, err)
	}
	return Written, nil
}

// Sync generates and writes the file of a package, removing a stale generated
// file when the package no longer declares anything.
func (g *Generator) Sync(pkg *models.PackageMetadata) (string, WriteResult, error) {
	file, err := g.Generate(pkg)
	if err != nil {
		return "", Unchanged, err
	}
	if file != nil {
		result, err := g.Write(file)
		return file.FilePath, result, err
	}

	path := filepath.Join(pkg.PackagePath, g.output)
	generated, err := utils.IsGenerated(path)
	if err != nil || !generated {
		return path, Unchanged, nil
	}
	if err := os.Remove(path); err != nil {
		return path, Unchanged, errors.FileSystemError("remove", path, err)
	}
	return path, Removed, nil
}
