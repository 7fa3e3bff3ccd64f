// Package cortex resolves component descriptors into a wired object graph
// and keeps the live instances in a registry that supports lookup, reload
// and hot replacement.
package cortex

import (
	"fmt"
	"reflect"
)

// Marker is the declarative tag that caused a type to be registered as a component.
// Markers are compared by their dynamic type, so a marker is usually an empty struct.
type Marker interface {
	MarkerName() string
}

// Initializer builds a component instance from its constructor arguments.
// Arguments arrive in the order of Descriptor.InitParams; an unfilled optional
// slot is passed as nil (use Arg to read it safely).
type Initializer func(args []any) (any, error)

// Hook is a zero-argument lifecycle operation bound to an instance.
type Hook func(instance any) error

// Param is a constructor slot of a component or a parameter of a factory member
type Param struct {
	Name     string
	Type     reflect.Type
	Optional bool
	// Deferred slots receive the target's stand-in at seed time instead of
	// waiting for the target to be constructed.
	Deferred bool
}

// FieldSlot is a dependency assigned after construction
type FieldSlot struct {
	Name string
	Type reflect.Type
	Set  func(instance, value any)
}

// FactoryMember produces an additional component once its owner is live
type FactoryMember struct {
	Name    string
	Type    reflect.Type
	Params  []Param
	Produce func(owner any, args []any) (any, error)
}

// Descriptor is the immutable metadata for a component or a factory product.
// Identity is the component Type; a registry holds at most one descriptor per type.
type Descriptor struct {
	Type       reflect.Type
	Name       string
	Marker     Marker
	Init       Initializer
	InitParams []Param
	Fields     []FieldSlot
	PostCreate Hook
	PreDestroy Hook
	Startup    func(instance any)
	Factories  []FactoryMember

	// Proxy builds the forwarding stand-in handed to consumers. Components
	// without a Proxy are exposed as their actual instance.
	Proxy func(h *Handle) any

	// Owner and Member are set only on factory product descriptors
	Owner  *Descriptor
	Member *FactoryMember
}

// IsProduct reports whether the descriptor describes a factory product
func (d *Descriptor) IsProduct() bool {
	return d.Owner != nil && d.Member != nil
}

// Key returns the display name of the descriptor
func (d *Descriptor) Key() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Type == nil {
		return "<nil>"
	}
	return d.Type.String()
}

func (d *Descriptor) String() string {
	return d.Key()
}

// slotParams returns the parameters that become constructor slots when the
// descriptor is enqueued
func (d *Descriptor) slotParams() []Param {
	if d.IsProduct() {
		return d.Member.Params
	}
	return d.InitParams
}

func (d *Descriptor) validate() error {
	if d == nil {
		return newError(CodeInvalidDescriptor, "<nil>", "", fmt.Errorf("descriptor is nil"))
	}
	if d.Type == nil {
		return newError(CodeInvalidDescriptor, d.Key(), "", fmt.Errorf("descriptor has no type"))
	}
	if !d.IsProduct() && d.Init == nil {
		return newError(CodeInvalidDescriptor, d.Key(), "", fmt.Errorf("descriptor has no initializer"))
	}
	for i, p := range d.InitParams {
		if p.Type == nil {
			return newError(CodeInvalidDescriptor, d.Key(), paramName(p, i), fmt.Errorf("parameter has no type"))
		}
	}
	for _, f := range d.Fields {
		if f.Type == nil || f.Set == nil {
			return newError(CodeInvalidDescriptor, d.Key(), f.Name, fmt.Errorf("field slot needs a type and a setter"))
		}
	}
	for _, m := range d.Factories {
		if m.Type == nil || m.Produce == nil {
			return newError(CodeInvalidDescriptor, d.Key(), m.Name, fmt.Errorf("factory member needs a type and a producer"))
		}
		for i, p := range m.Params {
			if p.Type == nil {
				return newError(CodeInvalidDescriptor, d.Key(), m.Name+" "+paramName(p, i), fmt.Errorf("factory member parameter has no type"))
			}
		}
	}
	return nil
}

// productDescriptor synthesizes the descriptor of a factory member's product
func productDescriptor(owner *Descriptor, member FactoryMember) *Descriptor {
	m := member
	name := m.Name
	if name == "" {
		name = m.Type.String()
	}
	return &Descriptor{
		Type:   m.Type,
		Name:   owner.Key() + "." + name,
		Marker: owner.Marker,
		Owner:  owner,
		Member: &m,
	}
}

func paramName(p Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", i)
}
