package cli

import (
	"os"
	"path/filepath"

	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/utils"
)

// Cleaner removes generated files.
type Cleaner struct {
	output string
}

// NewCleaner creates a cleaner for files named output.
func NewCleaner(output string) *Cleaner {
	return &Cleaner{output: output}
}

// CleanGeneratedFiles removes the generated files under the patterns and returns their paths.
// Patterns without "/..." only clean that directory.
func (c *Cleaner) CleanGeneratedFiles(patterns []string) ([]string, error) {
	roots, recursive := Roots(patterns)
	var removed []string
	for i, root := range roots {
		if recursive[i] {
			files, err := utils.CleanGenerated([]string{root}, c.output)
			removed = append(removed, files...)
			if err != nil {
				return removed, errors.Wrap(errors.FileSystemErrorCode, "failed to clean generated files", err)
			}
			continue
		}
		file, ok, err := c.cleanDirectory(root)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, file)
		}
	}
	return removed, nil
}

func (c *Cleaner) cleanDirectory(dir string) (string, bool, error) {
	path := filepath.Join(dir, c.output)
	generated, err := utils.IsGenerated(path)
	if err != nil || !generated {
		return "", false, nil
	}
	if err := os.Remove(path); err != nil {
		return "", false, errors.FileSystemError("remove", path, err)
	}
	return path, true, nil
}
