package cortex

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Entry pairs a descriptor with its live instances. The exposed instance is
// created at most once; the actual instance is swapped by reload and update.
type Entry struct {
	Descriptor *Descriptor

	// swap is held for writing while reload or update replaces the actual
	// instance, and for reading by registry lookups
	swap sync.RWMutex

	mu         sync.RWMutex
	actual     any
	exposed    any
	proxied    bool
	generation uuid.UUID
	dependents []*Entry
	products   []*Entry
	owner      *Entry
}

func newEntry(d *Descriptor) *Entry {
	return &Entry{Descriptor: d}
}

// Actual returns the current fully constructed instance, or nil while destroyed
func (e *Entry) Actual() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actual
}

// Exposed returns the instance handed to consumers: the stand-in when the
// descriptor declares one, the actual instance otherwise
func (e *Entry) Exposed() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.exposed != nil {
		return e.exposed
	}
	return e.actual
}

// Generation identifies the current actual instance; it changes whenever the
// instance is constructed, reloaded or replaced
func (e *Entry) Generation() uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Dependents returns the entries that were wired with this entry's instance
func (e *Entry) Dependents() []*Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Entry, len(e.dependents))
	copy(out, e.dependents)
	return out
}

// Products returns the factory products created from this entry
func (e *Entry) Products() []*Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Entry, len(e.products))
	copy(out, e.products)
	return out
}

// Owner returns the owner entry of a factory product
func (e *Entry) Owner() *Entry {
	return e.owner
}

func (e *Entry) setActual(instance any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actual = instance
	if instance != nil {
		e.generation = uuid.New()
	}
}

func (e *Entry) addDependent(dep *Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.dependents {
		if d == dep {
			return
		}
	}
	e.dependents = append(e.dependents, dep)
}

func (e *Entry) addProduct(p *Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.products = append(e.products, p)
}

// valueFor returns the instance that satisfies a slot of type t. Interface
// slots prefer the stand-in so holders survive reload; concrete slots need
// the actual instance.
func (e *Entry) valueFor(t reflect.Type) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.exposed != nil && t.Kind() == reflect.Interface && reflect.TypeOf(e.exposed).AssignableTo(t) {
		return e.exposed, true
	}
	if e.actual == nil {
		return nil, false
	}
	if e.Descriptor.Type.AssignableTo(t) || reflect.TypeOf(e.actual).AssignableTo(t) {
		return e.actual, true
	}
	return nil, false
}

// compatible reports whether the entry can satisfy a slot of type t, based on
// the declared type and the exposed stand-in
func (e *Entry) compatible(t reflect.Type) bool {
	if e.Descriptor.Type.AssignableTo(t) {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.exposed != nil && reflect.TypeOf(e.exposed).AssignableTo(t) {
		return true
	}
	return e.actual != nil && reflect.TypeOf(e.actual).AssignableTo(t)
}
