package cortex

import (
	"fmt"
)

// Backend performs construction and destruction of live instances
type Backend interface {
	// Construct calls the descriptor's initializer, stores the instance on the
	// entry, assigns injected fields and runs the post-create hook.
	Construct(e *Entry, args, fields []any) (any, error)
	// ConstructFactoryProduct invokes the factory member on the owner's actual
	// instance. The product is both the actual and the exposed instance.
	ConstructFactoryProduct(e *Entry, args []any) (any, error)
	// Destroy runs the pre-destroy hook and clears the actual instance
	Destroy(e *Entry) error
}

// DefaultBackend is the stateless Backend used unless another one is configured
type DefaultBackend struct{}

var _ Backend = DefaultBackend{}

// Construct implements Backend
func (DefaultBackend) Construct(e *Entry, args, fields []any) (any, error) {
	d := e.Descriptor
	if len(args) != len(d.InitParams) {
		return nil, newError(CodeInstantiation, d.Key(), "",
			fmt.Errorf("initializer takes %d arguments, got %d", len(d.InitParams), len(args)))
	}
	if len(fields) != len(d.Fields) {
		return nil, newError(CodeInstantiation, d.Key(), "",
			fmt.Errorf("descriptor declares %d fields, got %d values", len(d.Fields), len(fields)))
	}

	instance, err := callInit(d, args)
	if err != nil {
		return nil, newError(CodeInstantiation, d.Key(), "", err)
	}
	if instance == nil {
		return nil, newError(CodeInstantiation, d.Key(), "", fmt.Errorf("initializer returned nil"))
	}

	e.setActual(instance)
	if field, err := injectFields(d, instance, fields); err != nil {
		e.setActual(nil)
		return nil, newError(CodeInstantiation, d.Key(), field, err)
	}

	if d.PostCreate != nil {
		if err := callHook("post-create", d.PostCreate, instance); err != nil {
			e.setActual(nil)
			return nil, newError(CodePostCreate, d.Key(), "", err)
		}
	}
	return instance, nil
}

// ConstructFactoryProduct implements Backend
func (DefaultBackend) ConstructFactoryProduct(e *Entry, args []any) (any, error) {
	d := e.Descriptor
	if !d.IsProduct() {
		return nil, newError(CodeInstantiation, d.Key(), "", fmt.Errorf("not a factory product"))
	}
	if e.owner == nil {
		return nil, newError(CodeInstantiation, d.Key(), "", fmt.Errorf("owner %s is not registered", d.Owner.Key()))
	}
	owner := e.owner.Actual()
	if owner == nil {
		return nil, newError(CodeInstantiation, d.Key(), "", fmt.Errorf("owner %s is not live", d.Owner.Key()))
	}
	if len(args) != len(d.Member.Params) {
		return nil, newError(CodeInstantiation, d.Key(), "",
			fmt.Errorf("factory member takes %d arguments, got %d", len(d.Member.Params), len(args)))
	}

	product, err := callProduce(d, owner, args)
	if err != nil {
		return nil, newError(CodeInstantiation, d.Key(), "", err)
	}
	if product == nil {
		return nil, newError(CodeInstantiation, d.Key(), "", fmt.Errorf("factory member returned nil"))
	}
	e.setActual(product)
	return product, nil
}

// Destroy implements Backend. The instance is cleared even when the hook fails.
func (DefaultBackend) Destroy(e *Entry) error {
	d := e.Descriptor
	instance := e.Actual()
	defer e.setActual(nil)

	hook := d.PreDestroy
	if hook == nil || instance == nil {
		return nil
	}
	if err := callHook("pre-destroy", hook, instance); err != nil {
		return newError(CodePreDestroy, d.Key(), "", err)
	}
	return nil
}

// callInit runs the initializer and turns a panic into an error
func callInit(d *Descriptor, args []any) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initializer panicked: %v", r)
		}
	}()
	return d.Init(args)
}

func callProduce(d *Descriptor, owner any, args []any) (product any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory member panicked: %v", r)
		}
	}()
	return d.Member.Produce(owner, args)
}

// callHook runs a lifecycle hook and turns a panic into an error
func callHook(name string, hook Hook, instance any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s hook panicked: %v", name, r)
		}
	}()
	return hook(instance)
}

// injectFields assigns the field values in declaration order. A panicking
// setter is reported with the name of its field.
func injectFields(d *Descriptor, instance any, values []any) (field string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setter panicked: %v", r)
		}
	}()
	for i, f := range d.Fields {
		field = f.Name
		f.Set(instance, values[i])
	}
	return "", nil
}
