package models

import (
	"cmp"
	"slices"

	"github.com/toyz/cortex/internal/errors"
)

// Param is a constructor or factory-method parameter.
type Param struct {
	Name     string
	Type     string // Go source expression, e.g. "*store.DB"
	Optional bool
	Deferred bool
}

// Field is an injected struct field.
type Field struct {
	Name string
	Type string
}

// InitMetadata describes the function that builds a component.
type InitMetadata struct {
	Name         string
	Params       []Param
	ReturnsError bool
}

// HookTrait holds the lifecycle hook method names of a component.
type HookTrait struct {
	PostConstruct         string
	PostConstructReturnsE bool
	PreDestroy            string
	PreDestroyReturnsE    bool
	Startup               string
}

// HasHooks reports whether any hook is set.
func (h *HookTrait) HasHooks() bool {
	return h.PostConstruct != "" || h.PreDestroy != "" || h.Startup != ""
}

// Inherit fills unset hooks from parent.
func (h *HookTrait) Inherit(parent HookTrait) {
	if h.PostConstruct == "" {
		h.PostConstruct, h.PostConstructReturnsE = parent.PostConstruct, parent.PostConstructReturnsE
	}
	if h.PreDestroy == "" {
		h.PreDestroy, h.PreDestroyReturnsE = parent.PreDestroy, parent.PreDestroyReturnsE
	}
	if h.Startup == "" {
		h.Startup = parent.Startup
	}
}

// BeanMetadata is a factory method on a component.
type BeanMetadata struct {
	Method       string
	Name         string
	ProductType  string
	Params       []Param
	ReturnsError bool
}

// ComponentMetadata is everything the generator needs to emit one descriptor.
type ComponentMetadata struct {
	HookTrait
	TypeName string // struct name
	Type     string // exposed type, "*T" or "T" depending on the constructor result
	Name     string // explicit registry key, empty for the default
	Marker   string
	Proxy    string
	Init     *InitMetadata
	Fields   []Field
	Beans    []BeanMetadata
	Embeds   []string
	Location errors.SourceLocation
}

// Arity is the number of initializer parameters.
func (c *ComponentMetadata) Arity() int {
	if c.Init == nil {
		return 0
	}
	return len(c.Init.Params)
}

// MarkerMetadata is a type annotated with //cortex::marker.
type MarkerMetadata struct {
	TypeName string
	Name     string
	Alias    string
	// GenerateMethod is false when the type already declares MarkerName.
	GenerateMethod bool
	Location       errors.SourceLocation
}

// Method is an interface method signature.
type Method struct {
	Name     string
	Params   []Param
	Results  []string
	Variadic bool
}

// ProxyMetadata describes a forwarding stand-in to generate for an interface.
type ProxyMetadata struct {
	Interface string
	Methods   []Method
}

// StandInName is the name of the generated stand-in struct.
func (p ProxyMetadata) StandInName() string {
	return "cortex" + p.Interface + "StandIn"
}

// PackageMetadata represents all annotations found in a package
type PackageMetadata struct {
	PackageName string
	PackagePath string
	Components  []*ComponentMetadata
	Markers     []*MarkerMetadata
	Proxies     []ProxyMetadata
	Imports     map[string]string // package name -> import path, from the scanned files
}

// IsEmpty reports whether the package declares nothing to generate.
func (p *PackageMetadata) IsEmpty() bool {
	return len(p.Components) == 0 && len(p.Markers) == 0
}

// SortComponents orders components by initializer arity, then by type name.
func (p *PackageMetadata) SortComponents() {
	slices.SortStableFunc(p.Components, func(a, b *ComponentMetadata) int {
		return cmp.Or(cmp.Compare(a.Arity(), b.Arity()), cmp.Compare(a.TypeName, b.TypeName))
	})
}

// Component returns the component with the given struct name.
func (p *PackageMetadata) Component(typeName string) *ComponentMetadata {
	for _, c := range p.Components {
		if c.TypeName == typeName {
			return c
		}
	}
	return nil
}
