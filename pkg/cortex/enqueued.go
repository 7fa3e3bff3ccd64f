package cortex

import (
	"fmt"
	"reflect"
	"strings"
)

// slot is one dependency position of an enqueued unit
type slot struct {
	name     string
	typ      reflect.Type
	required bool
	optional bool
	deferred bool
	value    any
	filled   bool
}

// EnqueuedUnit is the resolution state of one descriptor that has not been
// constructed yet
type EnqueuedUnit struct {
	Descriptor *Descriptor

	ctorSlots  []*slot
	fieldSlots []*slot
}

// NewEnqueuedUnit wraps a descriptor with one empty slot per constructor
// parameter and injected field. Every slot starts out required.
func NewEnqueuedUnit(d *Descriptor) *EnqueuedUnit {
	u := &EnqueuedUnit{Descriptor: d}
	for i, p := range d.slotParams() {
		u.ctorSlots = append(u.ctorSlots, &slot{
			name:     paramName(p, i),
			typ:      p.Type,
			required: true,
			optional: p.Optional,
			deferred: p.Deferred,
		})
	}
	for _, f := range d.Fields {
		u.fieldSlots = append(u.fieldSlots, &slot{name: f.Name, typ: f.Type, required: true})
	}
	return u
}

// IsResolved reports whether every constructor slot is filled or not
// required, and every field slot is filled
func (u *EnqueuedUnit) IsResolved() bool {
	for _, s := range u.ctorSlots {
		if !s.filled && s.required {
			return false
		}
	}
	for _, s := range u.fieldSlots {
		if !s.filled {
			return false
		}
	}
	return true
}

// AddDependencyInstance offers a live entry to the unit. The entry fills every
// empty constructor slot of the compatible declared type and every compatible
// empty field slot. When the entry is compatible with empty constructor slots
// of two different declared types the assignment is ambiguous and fails.
func (u *EnqueuedUnit) AddDependencyInstance(e *Entry) (bool, error) {
	var candidates []*slot
	for _, s := range u.ctorSlots {
		if !s.filled && e.compatible(s.typ) {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) > 1 {
		first := candidates[0].typ
		for _, s := range candidates[1:] {
			if s.typ != first {
				return false, newError(CodeAmbiguousDependency, u.Descriptor.Key(), slotNames(candidates),
					fmt.Errorf("%s satisfies slots of types %s and %s", e.Descriptor.Key(), first, s.typ))
			}
		}
	}

	filled := false
	for _, s := range candidates {
		if v, ok := e.valueFor(s.typ); ok {
			s.value, s.filled = v, true
			filled = true
		}
	}
	for _, s := range u.fieldSlots {
		if s.filled {
			continue
		}
		if v, ok := e.valueFor(s.typ); ok {
			s.value, s.filled = v, true
			filled = true
		}
	}
	return filled, nil
}

// fillDeferred fills the deferred constructor slots compatible with the entry's
// stand-in. It is used while seeding, before the target is constructed.
func (u *EnqueuedUnit) fillDeferred(e *Entry) bool {
	stand := e.Exposed()
	if stand == nil {
		return false
	}
	filled := false
	for _, s := range u.ctorSlots {
		if s.deferred && !s.filled && reflect.TypeOf(stand).AssignableTo(s.typ) {
			s.value, s.filled = stand, true
			filled = true
		}
	}
	return filled
}

// markNotRequired relaxes the optional slot at position i
func (u *EnqueuedUnit) markNotRequired(i int) {
	if u.ctorSlots[i].optional {
		u.ctorSlots[i].required = false
	}
}

// relaxable reports whether the unit is blocked only by empty optional slots
func (u *EnqueuedUnit) relaxable() bool {
	for _, s := range u.fieldSlots {
		if !s.filled {
			return false
		}
	}
	blocked := false
	for _, s := range u.ctorSlots {
		if s.filled || !s.required {
			continue
		}
		if !s.optional {
			return false
		}
		blocked = true
	}
	return blocked
}

// relaxOptional relaxes the empty optional slots of a unit that is blocked
// only by optional slots. It reports whether the unit became resolvable.
func (u *EnqueuedUnit) relaxOptional() bool {
	if !u.relaxable() {
		return false
	}
	for _, s := range u.ctorSlots {
		if !s.filled && s.required && s.optional {
			s.required = false
		}
	}
	return true
}

// awaits reports whether a non-optional slot of the unit is still waiting for
// something the entry can provide
func (u *EnqueuedUnit) awaits(e *Entry) bool {
	for _, s := range u.ctorSlots {
		if !s.filled && s.required && !s.optional && e.compatible(s.typ) {
			return true
		}
	}
	for _, s := range u.fieldSlots {
		if !s.filled && e.compatible(s.typ) {
			return true
		}
	}
	return false
}

// Args returns the constructor arguments in declaration order, nil for
// unfilled optional slots
func (u *EnqueuedUnit) Args() []any {
	args := make([]any, len(u.ctorSlots))
	for i, s := range u.ctorSlots {
		args[i] = s.value
	}
	return args
}

// FieldValues returns the field values paired with Descriptor.Fields
func (u *EnqueuedUnit) FieldValues() []any {
	values := make([]any, len(u.fieldSlots))
	for i, s := range u.fieldSlots {
		values[i] = s.value
	}
	return values
}

// Missing lists the slots that still block the unit
func (u *EnqueuedUnit) Missing() []string {
	var missing []string
	for _, s := range u.ctorSlots {
		if !s.filled && s.required {
			missing = append(missing, s.typ.String())
		}
	}
	for _, s := range u.fieldSlots {
		if !s.filled {
			missing = append(missing, s.typ.String())
		}
	}
	return missing
}

func slotNames(slots []*slot) string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.name
	}
	return strings.Join(names, ", ")
}
