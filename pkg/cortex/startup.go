package cortex

import (
	"reflect"

	"go.uber.org/zap"
)

// Run resolves the descriptors, publishes them in a new registry and runs the
// startup hook of the startup type. A nil startup type skips the hook.
func Run(cfg Config, startup reflect.Type, descriptors ...*Descriptor) (*Registry, error) {
	cfg = cfg.withDefaults()

	entries, err := NewResolver(cfg).Resolve(descriptors, cfg.Provided)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(cfg)
	if err := reg.Init(Universe(descriptors, cfg.Provided), entries, cfg.Backend); err != nil {
		return nil, err
	}

	if startup != nil {
		if RunStartup(reg, startup) {
			cfg.Logger.Debug("startup hook finished", zap.Stringer("type", startup))
		}
	}
	return reg, nil
}

// RunStartup runs the startup hook of the component of type t. It reports
// whether a hook ran; a missing component, instance or hook is a no-op.
func RunStartup(reg *Registry, t reflect.Type) bool {
	e := reg.GetServiceDetails(t)
	if e == nil || e.Descriptor.Startup == nil {
		return false
	}
	instance := e.Actual()
	if instance == nil {
		return false
	}
	e.Descriptor.Startup(instance)
	return true
}

// Get returns the component compatible with T
func Get[T any](reg *Registry) (T, bool) {
	var zero T
	v, ok := reg.GetService(TypeOf[T]())
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// MustGet returns the component compatible with T or panics
func MustGet[T any](reg *Registry) T {
	v, ok := Get[T](reg)
	if !ok {
		panic("cortex: no component provides " + TypeOf[T]().String())
	}
	return v
}
