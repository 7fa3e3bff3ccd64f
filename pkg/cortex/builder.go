package cortex

import (
	"fmt"
	"reflect"
)

// TypeOf returns the reflect.Type of T, including interface types
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// In declares a required constructor parameter of type T
func In[T any](name string) Param {
	return Param{Name: name, Type: TypeOf[T]()}
}

// Optional declares a constructor parameter of type T that may stay unfilled
func Optional[T any](name string) Param {
	return Param{Name: name, Type: TypeOf[T](), Optional: true}
}

// Deferred declares a constructor parameter that receives the stand-in of T
// before T is constructed
func Deferred[T any](name string) Param {
	return Param{Name: name, Type: TypeOf[T](), Deferred: true}
}

// Arg reads argument i as T. Unfilled optional arguments yield the zero value.
func Arg[T any](args []any, i int) T {
	var zero T
	if i < 0 || i >= len(args) || args[i] == nil {
		return zero
	}
	v, ok := args[i].(T)
	if !ok {
		panic(fmt.Sprintf("cortex: argument %d is %T, not %T", i, args[i], zero))
	}
	return v
}

// Field declares an injected field of component C holding a V
func Field[C, V any](name string, set func(C, V)) FieldSlot {
	return FieldSlot{
		Name: name,
		Type: TypeOf[V](),
		Set: func(instance, value any) {
			set(instance.(C), Arg[V]([]any{value}, 0))
		},
	}
}

// HookOf adapts a typed lifecycle method to a Hook
func HookOf[C any](fn func(C) error) Hook {
	return func(instance any) error {
		return fn(instance.(C))
	}
}

// Bean declares a parameterless factory member of owner C producing a P
func Bean[C, P any](name string, produce func(C) P) FactoryMember {
	return FactoryMember{
		Name: name,
		Type: TypeOf[P](),
		Produce: func(owner any, _ []any) (any, error) {
			return produce(owner.(C)), nil
		},
	}
}

// BeanWith declares a factory member that needs its own dependencies
func BeanWith[C, P any](name string, params []Param, produce func(C, []any) (P, error)) FactoryMember {
	return FactoryMember{
		Name:   name,
		Type:   TypeOf[P](),
		Params: params,
		Produce: func(owner any, args []any) (any, error) {
			return produce(owner.(C), args)
		},
	}
}

// ProxyOf adapts a typed stand-in builder for interface I
func ProxyOf[I any](build func(h *Handle) I) func(h *Handle) any {
	return func(h *Handle) any {
		return build(h)
	}
}

// Describe starts a descriptor for component type C
func Describe[C any](init Initializer, params ...Param) *Descriptor {
	return &Descriptor{
		Type:       TypeOf[C](),
		Init:       init,
		InitParams: params,
	}
}
