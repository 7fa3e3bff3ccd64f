package cli

import (
	"os"
	"path"
	"path/filepath"

	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/utils"
)

// ModuleResolver maps package directories to import paths.
type ModuleResolver struct {
	gomod *utils.GoModParser
}

// NewModuleResolver creates a resolver sharing the reader's file cache.
func NewModuleResolver(reader *utils.FileReader) *ModuleResolver {
	return &ModuleResolver{gomod: utils.NewGoModParser(reader)}
}

// ResolveModuleName returns customModule when set, otherwise the module of the
// nearest go.mod above the working directory.
func (r *ModuleResolver) ResolveModuleName(customModule string) (string, error) {
	if customModule != "" {
		return customModule, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.FileSystemError("resolve", "working directory", err)
	}
	goMod, err := r.gomod.FindGoModFile(wd)
	if err != nil {
		return "", errors.Wrap(errors.ConfigurationErrorCode, "failed to determine module name", err).
			WithSuggestion("run inside a Go module", "or pass --module explicitly")
	}
	name, err := r.gomod.ParseModuleName(goMod)
	if err != nil {
		return "", errors.Wrap(errors.ConfigurationErrorCode, "failed to determine module name", err).
			WithLocation(errors.SourceLocation{File: goMod})
	}
	return name, nil
}

// BuildPackagePath returns the import path of packageDir. An empty module
// name falls back to the go.mod enclosing the directory.
func (r *ModuleResolver) BuildPackagePath(moduleName, packageDir string) (string, error) {
	if moduleName == "" {
		return r.gomod.ImportPath(packageDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.FileSystemError("resolve", "working directory", err)
	}
	abs, err := filepath.Abs(packageDir)
	if err != nil {
		return "", errors.FileSystemError("resolve", packageDir, err)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil {
		return "", errors.FileSystemError("resolve", packageDir, err)
	}
	if rel == "." {
		return moduleName, nil
	}
	return path.Join(moduleName, filepath.ToSlash(rel)), nil
}
