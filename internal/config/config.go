// Package config loads the project file that tunes code generation.
package config

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/toyz/cortex/internal/annotations"
	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/parser"
)

// EnvMaxIterations overrides max_iterations from the project file.
const EnvMaxIterations = "CORTEX_MAX_ITERATIONS"

// FileNames are the project files looked up, in order.
var FileNames = []string{"cortex.yaml", "cortex.yml", "cortex.toml"}

// Config is the content of a cortex project file.
type Config struct {
	// Output is the name of the generated file in every package.
	Output string `yaml:"output" toml:"output"`

	// Aliases maps custom annotation names onto built-in ones,
	// e.g. component: service.
	Aliases map[string]string `yaml:"aliases" toml:"aliases"`

	// Exclude lists glob patterns of directories skipped while scanning,
	// relative to the scanned root.
	Exclude []string `yaml:"exclude" toml:"exclude"`

	// MaxIterations is written into the generated Config function when set.
	MaxIterations int `yaml:"max_iterations" toml:"max_iterations"`

	// Source is the file the configuration was read from, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Output:  parser.DefaultOutputFile,
		Aliases: map[string]string{},
	}
}

// FileLoader decodes one configuration format.
type FileLoader interface {
	Load(r io.Reader, target any) error
	Extensions() []string
}

// YAMLLoader decodes YAML project files.
type YAMLLoader struct{}

func (YAMLLoader) Load(r io.Reader, target any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (YAMLLoader) Extensions() []string { return []string{".yaml", ".yml"} }

// TOMLLoader decodes TOML project files.
type TOMLLoader struct{}

func (TOMLLoader) Load(r io.Reader, target any) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func (TOMLLoader) Extensions() []string { return []string{".toml"} }

// Loader reads project files, picking a FileLoader by extension.
type Loader struct {
	loaders map[string]FileLoader
	getenv  func(string) string
}

// NewLoader creates a loader for YAML and TOML files.
func NewLoader() *Loader {
	l := &Loader{loaders: make(map[string]FileLoader), getenv: os.Getenv}
	l.RegisterLoader(YAMLLoader{})
	l.RegisterLoader(TOMLLoader{})
	return l
}

// RegisterLoader adds or replaces the loader of every extension it handles.
func (l *Loader) RegisterLoader(fl FileLoader) {
	for _, ext := range fl.Extensions() {
		l.loaders[ext] = fl
	}
}

// Find returns the first project file in dir, or "" when there is none.
func (l *Loader) Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads the project file in dir, falling back to defaults when there is none.
func (l *Loader) Load(dir string) (*Config, error) {
	path := l.Find(dir)
	if path == "" {
		cfg := Default()
		if err := l.finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return l.LoadFile(path)
}

// LoadFile reads the project file at path.
func (l *Loader) LoadFile(path string) (*Config, error) {
	fl, ok := l.loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, errors.Newf(errors.ConfigurationErrorCode, "unsupported config format %q", filepath.Ext(path)).
			WithLocation(errors.SourceLocation{File: path}).
			WithSuggestion("use a .yaml, .yml or .toml file")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileSystemError("open", path, err)
	}
	defer f.Close()

	cfg := Default()
	if err := fl.Load(f, cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigurationErrorCode, "failed to decode config", err).
			WithLocation(errors.SourceLocation{File: path})
	}
	cfg.Source = path
	if err := l.finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) finish(cfg *Config) error {
	if v := l.getenv(EnvMaxIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Newf(errors.ConfigurationErrorCode, "%s must be an integer, got %q", EnvMaxIterations, v)
		}
		cfg.MaxIterations = n
	}
	if cfg.Output == "" {
		cfg.Output = parser.DefaultOutputFile
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	return cfg.Validate()
}

// Validate checks the configuration for values the generator cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxIterations < 0 {
		errs = append(errs, errors.Newf(errors.ConfigurationErrorCode, "max_iterations must not be negative, got %d", c.MaxIterations))
	}
	if filepath.Base(c.Output) != c.Output || !strings.HasSuffix(c.Output, ".go") || strings.HasSuffix(c.Output, "_test.go") {
		errs = append(errs, errors.Newf(errors.ConfigurationErrorCode, "output must be a plain .go file name, got %q", c.Output))
	}
	for _, pat := range c.Exclude {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, errors.Newf(errors.ConfigurationErrorCode, "invalid exclude pattern %q", pat))
		}
	}
	for _, name := range c.aliasNames() {
		if _, err := annotations.ParseAnnotationType(c.Aliases[name]); err != nil {
			errs = append(errs, errors.Newf(errors.ConfigurationErrorCode, "alias %q targets unknown annotation %q", name, c.Aliases[name]).
				WithSuggestion(fmt.Sprintf("valid targets are %s", strings.Join(builtinNames(), ", "))))
		}
	}
	return errors.Combine(errs...)
}

// RegisterAliases adds the configured aliases to reg.
func (c *Config) RegisterAliases(reg *annotations.AnnotationRegistry) error {
	var errs []error
	for _, name := range c.aliasNames() {
		t, err := annotations.ParseAnnotationType(c.Aliases[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := reg.RegisterAlias(annotations.Alias{Name: name, Type: t}); err != nil {
			errs = append(errs, errors.Wrapf(errors.ConfigurationErrorCode, err, "invalid alias %q", name).
				WithLocation(errors.SourceLocation{File: c.Source}))
		}
	}
	return errors.Combine(errs...)
}

// Excluded reports whether a directory, given relative to the scan root, or
// one of its parents matches an exclude pattern.
func (c *Config) Excluded(rel string) bool {
	for dir := filepath.ToSlash(rel); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		for _, pat := range c.Exclude {
			if ok, err := doublestar.Match(pat, dir); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func (c *Config) aliasNames() []string {
	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinNames() []string {
	types := annotations.DefaultRegistry().ListTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
