package templates

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// ImportManager collects the imports of a generated file.
type ImportManager struct {
	imports map[string]string // path -> explicit name, "" when the default name applies
}

// NewImportManager creates a new import manager
func NewImportManager() *ImportManager {
	return &ImportManager{imports: make(map[string]string)}
}

// AddImport adds an import under its default package name.
func (im *ImportManager) AddImport(importPath string) {
	if importPath != "" {
		if _, ok := im.imports[importPath]; !ok {
			im.imports[importPath] = ""
		}
	}
}

// AddNamedImport adds an import referenced as name; the alias is only written when it differs
// from the default package name.
func (im *ImportManager) AddNamedImport(name, importPath string) {
	if importPath == "" {
		return
	}
	if name == DefaultName(importPath) {
		name = ""
	}
	im.imports[importPath] = name
}

// Len returns the number of imports.
func (im *ImportManager) Len() int { return len(im.imports) }

// GenerateImports renders the import block, standard library first.
func (im *ImportManager) GenerateImports() string {
	if len(im.imports) == 0 {
		return ""
	}

	var std, other []string
	for importPath, name := range im.imports {
		line := strconv.Quote(importPath)
		if name != "" {
			line = name + " " + line
		}
		if isStandard(importPath) {
			std = append(std, line)
		} else {
			other = append(other, line)
		}
	}
	sort.Slice(std, func(i, j int) bool { return unaliased(std[i]) < unaliased(std[j]) })
	sort.Slice(other, func(i, j int) bool { return unaliased(other[i]) < unaliased(other[j]) })

	if len(std)+len(other) == 1 {
		return fmt.Sprintf("import %s\n", append(std, other...)[0])
	}

	var b strings.Builder
	b.WriteString("import (\n")
	for _, line := range std {
		fmt.Fprintf(&b, "\t%s\n", line)
	}
	if len(std) > 0 && len(other) > 0 {
		b.WriteString("\n")
	}
	for _, line := range other {
		fmt.Fprintf(&b, "\t%s\n", line)
	}
	b.WriteString(")\n")
	return b.String()
}

// DefaultName is the package name an import path is referred to by without an alias.
func DefaultName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' {
		if _, err := strconv.Atoi(base[1:]); err == nil {
			return path.Base(path.Dir(importPath))
		}
	}
	return base
}

func isStandard(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

func unaliased(line string) string {
	if i := strings.Index(line, `"`); i >= 0 {
		return line[i:]
	}
	return line
}
