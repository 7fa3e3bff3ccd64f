package utils

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyz/cortex/pkg/cortex/cache"
)

// GeneratedHeader is the first line of every file the generator writes.
const GeneratedHeader = "// Code generated by cortex. DO NOT EDIT."

// FileReader parses Go files and caches the ASTs until the file changes on disk.
type FileReader struct {
	fileSet      *token.FileSet
	astCache     *cache.Cache[string, *ast.File]
	contentCache *cache.Cache[string, string]
}

// NewFileReader creates a new FileReader instance with caching
func NewFileReader() *FileReader {
	return &FileReader{
		fileSet:      token.NewFileSet(),
		astCache:     cache.New[string, *ast.File](),
		contentCache: cache.New[string, string](),
	}
}

// FileSet returns the token.FileSet positions refer to.
func (fr *FileReader) FileSet() *token.FileSet {
	return fr.fileSet
}

// ParseGoFile parses a Go source file and returns the AST with caching
func (fr *FileReader) ParseGoFile(filePath string) (*ast.File, error) {
	clean := filepath.Clean(filePath)
	if cached, ok := fr.astCache.GetWithFileValidation(clean, clean); ok {
		return cached, nil
	}

	file, err := parser.ParseFile(fr.fileSet, clean, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go file %s: %w", filepath.Base(clean), err)
	}
	if err := fr.astCache.SetWithFileInfo(clean, file, clean); err != nil {
		return nil, err
	}
	return file, nil
}

// ParseGoSource parses Go source code from a string
func (fr *FileReader) ParseGoSource(filename, source string) (*ast.File, error) {
	file, err := parser.ParseFile(fr.fileSet, filename, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go source: %w", err)
	}
	return file, nil
}

// ReadFile reads a file and returns its contents as a string with caching
func (fr *FileReader) ReadFile(filePath string) (string, error) {
	clean := filepath.Clean(filePath)
	if cached, ok := fr.contentCache.GetWithFileValidation(clean, clean); ok {
		return cached, nil
	}

	content, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filepath.Base(clean), err)
	}
	if err := fr.contentCache.SetWithFileInfo(clean, string(content), clean); err != nil {
		return "", err
	}
	return string(content), nil
}

// InvalidateFile removes a specific file from the cache
func (fr *FileReader) InvalidateFile(filePath string) {
	clean := filepath.Clean(filePath)
	fr.astCache.Delete(clean)
	fr.contentCache.Delete(clean)
}

// CacheStats returns the number of cached ASTs and file contents.
func (fr *FileReader) CacheStats() (astFiles, contentFiles int) {
	return fr.astCache.Size(), fr.contentCache.Size()
}

// IsSourceFile reports whether name is a non-test, non-generated Go file.
func IsSourceFile(name, output string) bool {
	return strings.HasSuffix(name, ".go") &&
		!strings.HasSuffix(name, "_test.go") &&
		name != output
}

var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"testdata":     true,
	"_examples":    true,
}

// SkipDir reports whether a directory should not be scanned.
func SkipDir(name string) bool {
	return skipDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..") ||
		strings.HasPrefix(name, "_")
}

// PackageDirs returns every directory under the roots that holds Go source files, sorted.
func PackageDirs(roots []string, output string) ([]string, error) {
	seen := make(map[string]bool)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && SkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if IsSourceFile(d.Name(), output) {
				seen[filepath.Dir(path)] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ParseDirectoryFiles parses the source files of one package directory.
func (fr *FileReader) ParseDirectoryFiles(dir, output string) (map[string]*ast.File, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make(map[string]*ast.File)
	var packageName string
	for _, entry := range entries {
		if entry.IsDir() || !IsSourceFile(entry.Name(), output) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		file, err := fr.ParseGoFile(path)
		if err != nil {
			return nil, "", err
		}
		name := file.Name.Name
		if strings.HasSuffix(name, "_test") {
			continue
		}
		if packageName == "" {
			packageName = name
		} else if name != packageName {
			return nil, "", fmt.Errorf("multiple packages found in directory %s: %s and %s", dir, packageName, name)
		}
		files[path] = file
	}

	if len(files) == 0 {
		return nil, "", fmt.Errorf("no Go files found in directory %s", dir)
	}
	return files, packageName, nil
}

// IsGenerated reports whether the file at path starts with GeneratedHeader.
func IsGenerated(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()) == GeneratedHeader, nil
}

// CleanGenerated removes generated output files under the roots and returns their paths.
// Files with the output name that were not written by the generator are left alone.
func CleanGenerated(roots []string, output string) ([]string, error) {
	var removed []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && SkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Name() != output {
				return nil
			}
			generated, err := IsGenerated(path)
			if err != nil || !generated {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			removed = append(removed, path)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
