package cortex

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/toyz/cortex/pkg/cortex/cache"
)

// Registry is the live store of resolved components. It is an explicit
// context object created by the bootstrap layer; there is no global instance.
type Registry struct {
	mu          sync.RWMutex
	initialized bool
	entries     []*Entry
	types       []reflect.Type
	backend     Backend

	// reloadMu serializes reload and update so cascades never interleave
	reloadMu sync.Mutex

	serviceCache *cache.Cache[reflect.Type, *Entry]
	detailsCache *cache.Cache[reflect.Type, *Entry]
	implCache    *cache.Cache[reflect.Type, []*Entry]
	markerCache  *cache.Cache[reflect.Type, []*Entry]

	log      *zap.Logger
	observer Observer
}

// NewRegistry creates an empty registry. Init must be called before lookups.
func NewRegistry(cfg Config) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		serviceCache: cache.New[reflect.Type, *Entry](),
		detailsCache: cache.New[reflect.Type, *Entry](),
		implCache:    cache.New[reflect.Type, []*Entry](),
		markerCache:  cache.New[reflect.Type, []*Entry](),
		log:          cfg.Logger.Named("registry"),
		observer:     cfg.Observer,
		backend:      cfg.Backend,
	}
}

// Init publishes the resolved entries. It fails with ErrAlreadyInitialized on
// every call after the first, leaving the first call's state untouched.
func (r *Registry) Init(types []reflect.Type, entries []*Entry, backend Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return newError(CodeAlreadyInitialized, "", "", nil)
	}
	if backend != nil {
		r.backend = backend
	}
	r.types = append([]reflect.Type(nil), types...)
	r.entries = append([]*Entry(nil), entries...)
	r.initialized = true

	r.log.Debug("registry initialized", zap.Int("components", len(entries)))
	return nil
}

// Initialized reports whether Init has been called
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

func (r *Registry) snapshot() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries
}

// GetService returns the exposed instance of the first component compatible
// with t. Interface queries receive the stand-in when there is one. A lookup
// never observes a component between the destroy and construct steps of a
// reload or update.
func (r *Registry) GetService(t reflect.Type) (any, bool) {
	e := r.serviceEntry(t)
	if e == nil {
		return nil, false
	}
	e.swap.RLock()
	defer e.swap.RUnlock()
	return e.valueFor(t)
}

// service is GetService for callers already serialized by reloadMu
func (r *Registry) service(t reflect.Type) (any, bool) {
	e := r.serviceEntry(t)
	if e == nil {
		return nil, false
	}
	return e.valueFor(t)
}

func (r *Registry) serviceEntry(t reflect.Type) *Entry {
	return r.serviceCache.GetOrCompute(t, func() *Entry {
		for _, e := range r.snapshot() {
			if e.compatible(t) {
				return e
			}
		}
		return nil
	}, func(e *Entry) bool { return e != nil })
}

// GetServiceDetails returns the entry of the first component compatible with t
func (r *Registry) GetServiceDetails(t reflect.Type) *Entry {
	return r.detailsCache.GetOrCompute(t, func() *Entry {
		for _, e := range r.snapshot() {
			if e.compatible(t) {
				return e
			}
		}
		return nil
	}, func(e *Entry) bool { return e != nil })
}

// GetImplementations returns every entry compatible with t in resolution order
func (r *Registry) GetImplementations(t reflect.Type) []*Entry {
	return r.implCache.GetOrCompute(t, func() []*Entry {
		var out []*Entry
		for _, e := range r.snapshot() {
			if e.compatible(t) {
				out = append(out, e)
			}
		}
		return out
	}, nil)
}

// GetServicesByMarker returns the entries registered by a marker of the given type
func (r *Registry) GetServicesByMarker(markerType reflect.Type) []*Entry {
	return r.markerCache.GetOrCompute(markerType, func() []*Entry {
		var out []*Entry
		for _, e := range r.snapshot() {
			if m := e.Descriptor.Marker; m != nil && reflect.TypeOf(m) == markerType {
				out = append(out, e)
			}
		}
		return out
	}, nil)
}

// GetAllServices returns every entry in resolution order
func (r *Registry) GetAllServices() []*Entry {
	entries := r.snapshot()
	out := make([]*Entry, len(entries))
	copy(out, entries)
	return out
}

// GetAllTypes returns every type known to the registry
func (r *Registry) GetAllTypes() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.types))
	copy(out, r.types)
	return out
}

// Lookup returns the entry with the given component name
func (r *Registry) Lookup(name string) (*Entry, bool) {
	for _, e := range r.snapshot() {
		if e.Descriptor.Key() == name {
			return e, true
		}
	}
	return nil, false
}

// Reload destroys and rebuilds the entry's actual instance in place. The
// stand-in is left untouched. Factory products cascade to their dependents,
// and an owner rebuilds its products.
func (r *Registry) Reload(e *Entry) error {
	return r.reload(e, false)
}

// ReloadCascade reloads the entry and, transitively, every dependent
func (r *Registry) ReloadCascade(e *Entry) error {
	return r.reload(e, true)
}

// ReloadType reloads the first component compatible with t
func (r *Registry) ReloadType(t reflect.Type) error {
	e := r.GetServiceDetails(t)
	if e == nil {
		return newError(CodeServiceNotFound, t.String(), "", nil)
	}
	return r.Reload(e)
}

func (r *Registry) reload(e *Entry, cascade bool) error {
	if !r.Initialized() {
		return newError(CodeNotInitialized, e.Descriptor.Key(), "", nil)
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	visited := make(map[*Entry]bool)
	return r.reloadLocked(e, cascade, visited)
}

func (r *Registry) reloadLocked(e *Entry, cascade bool, visited map[*Entry]bool) error {
	if visited[e] {
		return nil
	}
	visited[e] = true

	d := e.Descriptor
	r.log.Debug("reloading", zap.String("component", d.Key()), zap.Bool("cascade", cascade))

	destroyErr, buildErr := r.rebuild(e)
	r.invalidate(e)
	r.observer.Reloaded(d, buildErr)
	if buildErr != nil {
		return multierr.Append(destroyErr, buildErr)
	}

	err := destroyErr

	for _, p := range e.Products() {
		err = multierr.Append(err, r.reloadLocked(p, cascade, visited))
	}
	if cascade || d.IsProduct() {
		for _, dep := range e.Dependents() {
			err = multierr.Append(err, r.reloadLocked(dep, cascade || d.IsProduct(), visited))
		}
	}
	return err
}

// rebuild destroys the actual instance and constructs a new one from the
// current registry contents. A pre-destroy failure does not stop the rebuild;
// it is returned separately from the construction error.
func (r *Registry) rebuild(e *Entry) (destroyErr, buildErr error) {
	d := e.Descriptor
	if d.Init == nil && !d.IsProduct() {
		// provided instances are kept as they are
		return nil, nil
	}
	e.swap.Lock()
	defer e.swap.Unlock()

	destroyErr = r.backend.Destroy(e)

	args, err := r.collectDependencies(d, d.slotParams())
	if err != nil {
		return destroyErr, err
	}
	if d.IsProduct() {
		_, err = r.backend.ConstructFactoryProduct(e, args)
		return destroyErr, err
	}

	fields := make([]any, len(d.Fields))
	for i, f := range d.Fields {
		v, ok := r.service(f.Type)
		if !ok {
			return destroyErr, newError(CodeServiceNotFound, d.Key(), f.Name, fmt.Errorf("no component provides %s", f.Type))
		}
		fields[i] = v
	}
	_, err = r.backend.Construct(e, args, fields)
	return destroyErr, err
}

// collectDependencies looks up a value for each parameter. Missing optional
// parameters are passed as nil.
func (r *Registry) collectDependencies(d *Descriptor, params []Param) ([]any, error) {
	args := make([]any, len(params))
	for i, p := range params {
		v, ok := r.service(p.Type)
		if !ok {
			if p.Optional {
				continue
			}
			return nil, newError(CodeServiceNotFound, d.Key(), paramName(p, i), fmt.Errorf("no component provides %s", p.Type))
		}
		args[i] = v
	}
	return args, nil
}

// Update replaces the actual instance of the component compatible with the
// given instance, running the pre-destroy hook on the old one
func (r *Registry) Update(instance any) error {
	if instance == nil {
		return newError(CodeServiceNotFound, "<nil>", "", nil)
	}
	t := reflect.TypeOf(instance)

	var target *Entry
	for _, e := range r.snapshot() {
		if t.AssignableTo(e.Descriptor.Type) {
			target = e
			break
		}
	}
	if target == nil {
		return newError(CodeServiceNotFound, t.String(), "", nil)
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	target.swap.Lock()
	err := r.backend.Destroy(target)
	target.setActual(instance)
	target.swap.Unlock()
	r.invalidate(target)
	r.log.Debug("updated", zap.String("component", target.Descriptor.Key()))
	return err
}

// Close runs the pre-destroy hooks of every component in reverse resolution
// order and returns the combined errors
func (r *Registry) Close() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	entries := r.snapshot()
	var err error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Actual() == nil {
			continue
		}
		if destroyErr := r.backend.Destroy(e); destroyErr != nil {
			r.log.Warn("pre-destroy failed", zap.String("component", e.Descriptor.Key()), zap.Error(destroyErr))
			err = multierr.Append(err, destroyErr)
		}
		r.invalidate(e)
	}
	return err
}

// invalidate drops the cached lookups that resolved to the entry
func (r *Registry) invalidate(e *Entry) {
	r.serviceCache.DeleteFunc(func(_ reflect.Type, v *Entry) bool { return v == e })
	r.detailsCache.DeleteFunc(func(_ reflect.Type, v *Entry) bool { return v == e })
	contains := func(_ reflect.Type, list []*Entry) bool {
		for _, v := range list {
			if v == e {
				return true
			}
		}
		return false
	}
	r.implCache.DeleteFunc(contains)
	r.markerCache.DeleteFunc(contains)
}
