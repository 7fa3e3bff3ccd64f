package cortex

import "fmt"

// Handle is the back-reference a stand-in holds to its entry. Calls made on a
// stand-in read the current actual instance through the handle, so they follow
// reloads without the holder re-fetching anything.
type Handle struct {
	entry *Entry
}

// Current returns the entry's actual instance at call time
func (h *Handle) Current() any {
	return h.entry.Actual()
}

// Name returns the name of the component behind the handle
func (h *Handle) Name() string {
	return h.entry.Descriptor.Key()
}

// Current returns the handle's actual instance as T. It panics with a
// descriptive message when the component is destroyed or of another type.
func Current[T any](h *Handle) T {
	v, ok := h.Current().(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("cortex: %s has no live instance of %T", h.Name(), zero))
	}
	return v
}

// ProxyFactory creates the forwarding stand-ins of entries
type ProxyFactory struct{}

// Wrap creates the stand-in for an entry and records it as the exposed
// instance. A second call for the same entry fails with ErrProxyAlreadyCreated.
// Descriptors without a Proxy yield a nil stand-in and stay exposed as their
// actual instance.
func (ProxyFactory) Wrap(e *Entry) (any, error) {
	e.mu.Lock()
	if e.proxied {
		e.mu.Unlock()
		return nil, newError(CodeProxyAlreadyCreated, e.Descriptor.Key(), "", nil)
	}
	e.proxied = true
	e.mu.Unlock()

	if e.Descriptor.Proxy == nil || e.Descriptor.IsProduct() {
		return nil, nil
	}
	stand := e.Descriptor.Proxy(&Handle{entry: e})
	if stand == nil {
		return nil, newError(CodeInvalidDescriptor, e.Descriptor.Key(), "", fmt.Errorf("proxy builder returned nil"))
	}

	e.mu.Lock()
	e.exposed = stand
	e.mu.Unlock()
	return stand, nil
}
