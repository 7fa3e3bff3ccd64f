package annotations

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Alias maps a custom annotation name onto a built-in type with preset parameters.
type Alias struct {
	Name     string
	Type     AnnotationType
	Defaults map[string]any
}

// AnnotationRegistry holds annotation schemas and the aliases in effect for a run.
type AnnotationRegistry struct {
	mu      sync.RWMutex
	schemas map[AnnotationType]AnnotationSchema
	aliases map[string]Alias
}

// NewRegistry returns a registry preloaded with the built-in schemas.
func NewRegistry() *AnnotationRegistry {
	r := &AnnotationRegistry{
		schemas: make(map[AnnotationType]AnnotationSchema),
		aliases: make(map[string]Alias),
	}
	for _, s := range BuiltinSchemas() {
		// built-ins are well formed
		_ = r.Register(s)
	}
	return r
}

var (
	defaultRegistry *AnnotationRegistry
	defaultOnce     sync.Once
)

// DefaultRegistry returns a shared registry with built-in schemas and no aliases.
func DefaultRegistry() *AnnotationRegistry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Clone returns an independent copy so package-scoped aliases do not leak.
func (r *AnnotationRegistry) Clone() *AnnotationRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &AnnotationRegistry{
		schemas: maps.Clone(r.schemas),
		aliases: maps.Clone(r.aliases),
	}
}

// Register adds or replaces the schema for schema.Type.
func (r *AnnotationRegistry) Register(schema AnnotationSchema) error {
	if err := validateSchema(schema); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Type] = schema
	return nil
}

// GetSchema returns the schema for t.
func (r *AnnotationRegistry) GetSchema(t AnnotationType) (AnnotationSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[t]
	if !ok {
		return AnnotationSchema{}, fmt.Errorf("no schema registered for %s", t)
	}
	return s, nil
}

// ListTypes returns the registered annotation types in declaration order.
func (r *AnnotationRegistry) ListTypes() []AnnotationType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.schemas))
}

// RegisterAlias makes //cortex::<alias.Name> behave like the aliased type with Defaults preset.
func (r *AnnotationRegistry) RegisterAlias(alias Alias) error {
	if _, err := ParseAnnotationType(alias.Name); err == nil {
		return fmt.Errorf("alias %q shadows a built-in annotation", alias.Name)
	}
	schema, err := r.GetSchema(alias.Type)
	if err != nil {
		return err
	}
	for key := range alias.Defaults {
		if _, ok := schema.Parameters[key]; !ok {
			return fmt.Errorf("alias %q presets unknown parameter %s for %s", alias.Name, key, alias.Type)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.aliases[alias.Name]; ok && existing.Type != alias.Type {
		return fmt.Errorf("alias %q already maps to %s", alias.Name, existing.Type)
	}
	r.aliases[alias.Name] = alias
	return nil
}

// Resolve maps an annotation name to its type and alias defaults.
func (r *AnnotationRegistry) Resolve(name string) (AnnotationType, map[string]any, bool) {
	if t, err := ParseAnnotationType(name); err == nil {
		return t, nil, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	alias, ok := r.aliases[name]
	if !ok {
		return 0, nil, false
	}
	return alias.Type, alias.Defaults, true
}

// Aliases returns the registered alias names sorted.
func (r *AnnotationRegistry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.aliases))
}

func validateSchema(schema AnnotationSchema) error {
	for name, spec := range schema.Parameters {
		if name == "" {
			return fmt.Errorf("%s schema has an unnamed parameter", schema.Type)
		}
		if spec.Required && spec.DefaultValue != nil {
			return fmt.Errorf("%s parameter %s is required and cannot have a default", schema.Type, name)
		}
		if spec.DefaultValue != nil && !matchesType(spec.DefaultValue, spec.Type) {
			return fmt.Errorf("%s parameter %s default is not a %s", schema.Type, name, spec.Type)
		}
	}
	return nil
}

func matchesType(v any, t ParameterType) bool {
	switch t {
	case BoolType:
		_, ok := v.(bool)
		return ok
	case StringSliceType:
		_, ok := v.([]string)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}
