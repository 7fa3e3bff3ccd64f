package utils

import (
	"fmt"
	"path"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// GoModParser locates and reads go.mod files.
type GoModParser struct {
	fileReader *FileReader
}

// NewGoModParser creates a new go.mod parser sharing fileReader's cache
func NewGoModParser(fileReader *FileReader) *GoModParser {
	return &GoModParser{fileReader: fileReader}
}

// ParseModuleName extracts the module path from a go.mod file
func (p *GoModParser) ParseModuleName(goModPath string) (string, error) {
	clean := filepath.Clean(goModPath)
	if filepath.Base(clean) != "go.mod" {
		return "", fmt.Errorf("file is not a go.mod file: %s", goModPath)
	}

	content, err := p.fileReader.ReadFile(clean)
	if err != nil {
		return "", err
	}

	modFile, err := modfile.ParseLax(clean, []byte(content), nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod file: %w", err)
	}
	if modFile.Module == nil {
		return "", fmt.Errorf("no module declaration found in %s", clean)
	}
	return modFile.Module.Mod.Path, nil
}

// FindGoModFile walks up from startDir to the nearest go.mod
func (p *GoModParser) FindGoModFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "go.mod")
		if _, err := p.fileReader.ReadFile(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod file not found above %s", startDir)
		}
		dir = parent
	}
}

// ImportPath returns the import path of the package in dir.
func (p *GoModParser) ImportPath(dir string) (string, error) {
	goMod, err := p.FindGoModFile(dir)
	if err != nil {
		return "", err
	}
	module, err := p.ParseModuleName(goMod)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Dir(goMod), abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return module, nil
	}
	return path.Join(module, filepath.ToSlash(rel)), nil
}
