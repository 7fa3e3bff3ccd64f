package cortex

import (
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
)

// Resolver turns an unordered descriptor set into an ordered list of live entries
type Resolver struct {
	cfg     Config
	backend Backend
	proxies ProxyFactory
	log     *zap.Logger
}

// NewResolver creates a resolver from the given configuration
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		cfg:     cfg,
		backend: cfg.Backend,
		log:     cfg.Logger.Named("resolver"),
	}
}

// resolution holds the state of a single Resolve call
type resolution struct {
	*Resolver

	universe  []reflect.Type
	entries   map[*Descriptor]*Entry
	available []*Entry
	queue     []*EnqueuedUnit
	counter   int
}

// Resolve builds every descriptor and returns the entries in resolution order,
// provided instances first. Nothing is constructed when pre-flight validation
// fails, and no partial result is returned on any failure.
func (r *Resolver) Resolve(descriptors []*Descriptor, provided []Provided) ([]*Entry, error) {
	res := &resolution{
		Resolver: r,
		entries:  make(map[*Descriptor]*Entry),
	}

	if err := res.validate(descriptors, provided); err != nil {
		return nil, err
	}
	res.universe = Universe(descriptors, provided)

	units, err := res.preflight(descriptors)
	if err != nil {
		return nil, err
	}

	for _, p := range provided {
		e := newEntry(p.Descriptor)
		e.setActual(p.Instance)
		res.entries[p.Descriptor] = e
		if err := res.register(e); err != nil {
			return nil, err
		}
	}

	if err := res.seed(units); err != nil {
		return nil, err
	}

	if err := res.loop(); err != nil {
		return nil, err
	}

	r.cfg.Observer.Resolved(len(res.available), res.counter)
	r.log.Debug("resolution complete",
		zap.Int("components", len(res.available)),
		zap.Int("iterations", res.counter))
	return res.available, nil
}

func (res *resolution) validate(descriptors []*Descriptor, provided []Provided) error {
	seen := make(map[reflect.Type]string)
	check := func(d *Descriptor) error {
		if err := d.validate(); err != nil {
			return err
		}
		if other, ok := seen[d.Type]; ok {
			return newError(CodeInvalidDescriptor, d.Key(), "",
				fmt.Errorf("type %s is already registered by %s", d.Type, other))
		}
		seen[d.Type] = d.Key()
		return nil
	}
	for _, p := range provided {
		if p.Descriptor == nil || p.Descriptor.Type == nil || p.Instance == nil {
			return newError(CodeInvalidDescriptor, "provided", "", fmt.Errorf("provided instance needs a descriptor and a value"))
		}
		if other, ok := seen[p.Descriptor.Type]; ok {
			return newError(CodeInvalidDescriptor, p.Descriptor.Key(), "",
				fmt.Errorf("type %s is already registered by %s", p.Descriptor.Type, other))
		}
		seen[p.Descriptor.Type] = p.Descriptor.Key()
	}
	for _, d := range descriptors {
		if d != nil && d.IsProduct() {
			return newError(CodeInvalidDescriptor, d.Key(), "", fmt.Errorf("factory products are derived from their owner"))
		}
		if err := check(d); err != nil {
			return err
		}
	}
	return nil
}

// Universe returns every type that can satisfy a dependency: descriptor types,
// factory product types and provided types
func Universe(descriptors []*Descriptor, provided []Provided) []reflect.Type {
	var types []reflect.Type
	for _, p := range provided {
		types = append(types, p.Descriptor.Type)
	}
	for _, d := range descriptors {
		types = append(types, d.Type)
		for _, m := range d.Factories {
			types = append(types, m.Type)
		}
	}
	return types
}

func (res *resolution) satisfiable(t reflect.Type) bool {
	for _, u := range res.universe {
		if u.AssignableTo(t) {
			return true
		}
	}
	return false
}

// preflight checks that every required slot can be satisfied by some type in
// the universe and builds the initial units. Unsatisfiable optional slots are
// marked not required.
func (res *resolution) preflight(descriptors []*Descriptor) ([]*EnqueuedUnit, error) {
	checkParams := func(d *Descriptor, params []Param, u *EnqueuedUnit) error {
		for i, p := range params {
			if res.satisfiable(p.Type) {
				continue
			}
			if !p.Optional {
				return newError(CodeUnsatisfiableDependency, d.Key(), paramName(p, i),
					fmt.Errorf("no component provides %s", p.Type))
			}
			if u != nil {
				u.markNotRequired(i)
			}
		}
		return nil
	}

	units := make([]*EnqueuedUnit, 0, len(descriptors))
	for _, d := range descriptors {
		u := NewEnqueuedUnit(d)
		if err := checkParams(d, d.InitParams, u); err != nil {
			return nil, err
		}
		for _, f := range d.Fields {
			if !res.satisfiable(f.Type) {
				return nil, newError(CodeUnsatisfiableDependency, d.Key(), f.Name,
					fmt.Errorf("no component provides %s", f.Type))
			}
		}
		for _, m := range d.Factories {
			if err := checkParams(productDescriptor(d, m), m.Params, nil); err != nil {
				return nil, err
			}
		}
		units = append(units, u)
	}
	return units, nil
}

// seed creates the entries and stand-ins of every descriptor, pre-fills
// deferred slots and fills slots satisfiable by provided instances
func (res *resolution) seed(units []*EnqueuedUnit) error {
	for _, u := range units {
		e := newEntry(u.Descriptor)
		if _, err := res.proxies.Wrap(e); err != nil {
			return err
		}
		res.entries[u.Descriptor] = e
	}
	for _, u := range units {
		for _, other := range units {
			if t := res.entries[other.Descriptor]; t.Descriptor.Proxy != nil {
				u.fillDeferred(t)
			}
		}
		for _, e := range res.available {
			if _, err := u.AddDependencyInstance(e); err != nil {
				return err
			}
		}
		res.queue = append(res.queue, u)
		res.log.Debug("enqueued", zap.String("component", u.Descriptor.Key()))
	}
	return nil
}

// loop drives the worklist until it is empty or the budget is exhausted
func (res *resolution) loop() error {
	stalled := 0
	for len(res.queue) > 0 {
		u := res.queue[0]
		res.queue = res.queue[1:]

		if u.IsResolved() {
			if err := res.instantiate(u); err != nil {
				return err
			}
			stalled = 0
			continue
		}

		res.counter++
		if res.counter > res.cfg.MaxIterations {
			return newError(CodeResolutionBudgetExceeded, u.Descriptor.Key(), "",
				fmt.Errorf("%d rotations without full resolution, still missing %v", res.cfg.MaxIterations, u.Missing()))
		}
		res.queue = append(res.queue, u)

		stalled++
		if stalled >= len(res.queue) {
			// a full pass made no progress: let one unit blocked only by
			// optional slots go ahead without them
			if pending := res.relaxCandidate(); pending != nil && pending.relaxOptional() {
				res.log.Debug("relaxed optional dependencies", zap.String("component", pending.Descriptor.Key()))
			}
			stalled = 0
		}
	}
	return nil
}

// relaxCandidate picks the stalled unit whose optional slots are given up.
// A unit that another pending unit requires goes first; otherwise the first
// relaxable unit in queue order.
func (res *resolution) relaxCandidate() *EnqueuedUnit {
	var first *EnqueuedUnit
	for _, u := range res.queue {
		if !u.relaxable() {
			continue
		}
		if first == nil {
			first = u
		}
		e := res.entries[u.Descriptor]
		for _, other := range res.queue {
			if other != u && other.awaits(e) {
				return u
			}
		}
	}
	return first
}

// instantiate constructs a resolved unit, registers it and creates its
// factory products
func (res *resolution) instantiate(u *EnqueuedUnit) error {
	d := u.Descriptor
	e := res.entries[d]

	start := time.Now()
	var err error
	if d.IsProduct() {
		_, err = res.backend.ConstructFactoryProduct(e, u.Args())
	} else {
		_, err = res.backend.Construct(e, u.Args(), u.FieldValues())
	}
	if err != nil {
		return err
	}
	res.cfg.Observer.Constructed(d, time.Since(start))
	res.log.Debug("constructed", zap.String("component", d.Key()), zap.Bool("product", d.IsProduct()))

	if err := res.register(e); err != nil {
		return err
	}

	for _, m := range d.Factories {
		pd := productDescriptor(d, m)
		pe := newEntry(pd)
		pe.owner = e
		e.addProduct(pe)
		res.entries[pd] = pe

		pu := NewEnqueuedUnit(pd)
		for i, p := range m.Params {
			if p.Optional && !res.satisfiable(p.Type) {
				pu.markNotRequired(i)
			}
		}
		for _, avail := range res.available {
			if _, err := pu.AddDependencyInstance(avail); err != nil {
				return err
			}
		}
		if pu.IsResolved() {
			if err := res.instantiate(pu); err != nil {
				return err
			}
			continue
		}
		res.queue = append(res.queue, pu)
		res.log.Debug("product waiting for dependencies",
			zap.String("component", pd.Key()),
			zap.Strings("missing", pu.Missing()))
	}
	return nil
}

// register publishes a live entry: it back-fills every pending unit and
// records the entry as a dependent of the entries it was wired with
func (res *resolution) register(e *Entry) error {
	for _, u := range res.queue {
		if _, err := u.AddDependencyInstance(e); err != nil {
			return err
		}
	}

	d := e.Descriptor
	var slotTypes []reflect.Type
	for _, p := range d.slotParams() {
		slotTypes = append(slotTypes, p.Type)
	}
	for _, f := range d.Fields {
		slotTypes = append(slotTypes, f.Type)
	}
	for _, t := range slotTypes {
		for _, prev := range res.available {
			if prev.compatible(t) {
				prev.addDependent(e)
			}
		}
	}

	res.available = append(res.available, e)
	return nil
}
