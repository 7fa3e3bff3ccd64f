package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/utils"
)

// DirectoryScanner expands directory patterns into package directories.
type DirectoryScanner struct {
	output   string
	excluded func(rel string) bool
}

// NewDirectoryScanner creates a scanner ignoring the generated output file.
func NewDirectoryScanner(output string, excluded func(rel string) bool) *DirectoryScanner {
	if excluded == nil {
		excluded = func(string) bool { return false }
	}
	return &DirectoryScanner{output: output, excluded: excluded}
}

// Roots returns the directories named by the patterns. Go-style "dir/..."
// patterns are reported as recursive.
func Roots(patterns []string) (dirs []string, recursive []bool) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	for _, pattern := range patterns {
		dir, rec := pattern, false
		if pattern == "..." || strings.HasSuffix(pattern, "/...") {
			dir, rec = strings.TrimSuffix(strings.TrimSuffix(pattern, "..."), "/"), true
			if dir == "" {
				dir = "."
			}
		}
		dirs = append(dirs, filepath.Clean(dir))
		recursive = append(recursive, rec)
	}
	return dirs, recursive
}

// ScanDirectories returns the sorted, de-duplicated package directories
// matched by the patterns.
func (s *DirectoryScanner) ScanDirectories(patterns []string) ([]string, error) {
	roots, recursive := Roots(patterns)
	seen := make(map[string]bool)

	for i, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.FileSystemError("scan", root, err).
				WithSuggestion("check that the directory exists")
		}
		if !info.IsDir() {
			return nil, errors.Newf(errors.FileSystemErrorCode, "%s is not a directory", root)
		}

		var dirs []string
		if recursive[i] {
			dirs, err = utils.PackageDirs([]string{root}, s.output)
			if err != nil {
				return nil, errors.Wrap(errors.FileSystemErrorCode, "failed to scan directories", err)
			}
		} else if ok, err := s.hasSources(root); err != nil {
			return nil, err
		} else if ok {
			dirs = []string{root}
		}

		for _, dir := range dirs {
			rel, err := filepath.Rel(root, dir)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
			}
			if !s.excluded(rel) {
				seen[dir] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for dir := range seen {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out, nil
}

func (s *DirectoryScanner) hasSources(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, errors.FileSystemError("read", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && utils.IsSourceFile(e.Name(), s.output) {
			return true, nil
		}
	}
	return false, nil
}
