package cortex

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Descriptor.Key()
	}
	return out
}

func indexOf(entries []*Entry, name string) int {
	for i, e := range entries {
		if e.Descriptor.Key() == name {
			return i
		}
	}
	return -1
}

func TestResolve_OrdersDependenciesFirst(t *testing.T) {
	rec := &recorder{}
	entries, err := NewResolver(DefaultConfig()).Resolve(chainDescriptors(rec), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"*cortex.base", "*cortex.middle", "*cortex.top"}, keys(entries))
	assert.Equal(t, []string{"new base", "new middle", "new top"}, rec.list())

	topInstance := entries[2].Actual().(*top)
	assert.Same(t, entries[1].Actual(), topInstance.middle)
	assert.Same(t, entries[0].Actual(), topInstance.middle.base)
}

func TestResolve_ProvidedInstancesComeFirst(t *testing.T) {
	c := &clock{tick: 7}
	d := Describe[*top](func(args []any) (any, error) {
		return &top{clock: Arg[Clock](args, 0)}, nil
	}, In[Clock]("clock"))

	entries, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{d}, []Provided{ProvideAs[Clock](c)})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "cortex.Clock", entries[0].Descriptor.Key())
	assert.Same(t, c, entries[0].Actual())
	assert.Equal(t, 7, entries[1].Actual().(*top).clock.Now())
}

func TestResolve_UnsatisfiableDependencyConstructsNothing(t *testing.T) {
	rec := &recorder{}
	descs := chainDescriptors(rec)
	descs = append(descs, Describe[*consumer](func(args []any) (any, error) {
		rec.add("new consumer")
		return &consumer{}, nil
	}, In[*settings]("settings")))

	_, err := NewResolver(DefaultConfig()).Resolve(descs, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsatisfiableDependency))
	assert.Contains(t, err.Error(), "settings")
	assert.Empty(t, rec.list())
}

func TestResolve_UnsatisfiableFieldFails(t *testing.T) {
	d := Describe[*top](func([]any) (any, error) { return &top{}, nil })
	d.Fields = []FieldSlot{Field[*top, Clock]("clock", func(t *top, c Clock) { t.clock = c })}

	_, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{d}, nil)
	assert.ErrorIs(t, err, ErrUnsatisfiableDependency)
}

func TestResolve_OptionalUnsatisfiableIsNil(t *testing.T) {
	d := Describe[*top](func(args []any) (any, error) {
		return &top{clock: Arg[Clock](args, 0)}, nil
	}, Optional[Clock]("clock"))

	entries, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{d}, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Actual().(*top).clock)
}

func TestResolve_FieldInjectionBeforePostCreate(t *testing.T) {
	var seen Clock
	d := Describe[*top](func([]any) (any, error) { return &top{}, nil })
	d.Fields = []FieldSlot{Field[*top, Clock]("clock", func(t *top, c Clock) { t.clock = c })}
	d.PostCreate = HookOf[*top](func(t *top) error {
		seen = t.clock
		return nil
	})

	c := &clock{tick: 3}
	entries, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{d}, []Provided{Provide(c)})
	require.NoError(t, err)
	assert.Same(t, c, entries[1].Actual().(*top).clock)
	assert.Same(t, c, seen)
}

type alpha struct{ beta *beta }
type beta struct{ alpha *alpha }

func TestResolve_CycleWithOptionalSlot(t *testing.T) {
	newAlpha := func() *Descriptor {
		return Describe[*alpha](func(args []any) (any, error) {
			return &alpha{beta: Arg[*beta](args, 0)}, nil
		}, In[*beta]("beta"))
	}
	newBeta := func() *Descriptor {
		return Describe[*beta](func(args []any) (any, error) {
			return &beta{alpha: Arg[*alpha](args, 0)}, nil
		}, Optional[*alpha]("alpha"))
	}

	orders := map[string]func() []*Descriptor{
		"alpha first": func() []*Descriptor { return []*Descriptor{newAlpha(), newBeta()} },
		"beta first":  func() []*Descriptor { return []*Descriptor{newBeta(), newAlpha()} },
	}

	for name, descs := range orders {
		t.Run(name, func(t *testing.T) {
			entries, err := NewResolver(DefaultConfig()).Resolve(descs(), nil)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			b := entries[indexOf(entries, "*cortex.beta")].Actual().(*beta)
			a := entries[indexOf(entries, "*cortex.alpha")].Actual().(*alpha)
			assert.Less(t, indexOf(entries, "*cortex.beta"), indexOf(entries, "*cortex.alpha"))
			assert.Same(t, b, a.beta)
			assert.Nil(t, b.alpha, "alpha resolves after beta, so the optional slot stays empty")
		})
	}
}

type bystander struct{ alpha *alpha }

func TestResolve_RelaxesTheUnitOnTheCycleFirst(t *testing.T) {
	descs := []*Descriptor{
		Describe[*bystander](func(args []any) (any, error) {
			return &bystander{alpha: Arg[*alpha](args, 0)}, nil
		}, Optional[*alpha]("alpha")),
		Describe[*alpha](func(args []any) (any, error) {
			return &alpha{beta: Arg[*beta](args, 0)}, nil
		}, In[*beta]("beta")),
		Describe[*beta](func(args []any) (any, error) {
			return &beta{alpha: Arg[*alpha](args, 0)}, nil
		}, Optional[*alpha]("alpha")),
	}

	entries, err := NewResolver(DefaultConfig()).Resolve(descs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"*cortex.beta", "*cortex.alpha", "*cortex.bystander"}, keys(entries))

	obs := entries[2].Actual().(*bystander)
	a := entries[1].Actual().(*alpha)
	assert.Same(t, a, obs.alpha, "bystander waits for alpha instead of being built without it")
	assert.Nil(t, entries[0].Actual().(*beta).alpha)
}

func TestResolve_DeferredSlotBreaksCycle(t *testing.T) {
	rec := &recorder{}
	next := 0
	for name, descs := range map[string][]*Descriptor{
		"ping first": {pingDescriptor(rec, &next), pongDescriptor(rec)},
		"pong first": {pongDescriptor(rec), pingDescriptor(rec, &next)},
	} {
		t.Run(name, func(t *testing.T) {
			entries, err := NewResolver(DefaultConfig()).Resolve(descs, nil)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			pong := entries[indexOf(entries, "*cortex.pongService")].Actual().(*pongService)
			ping := entries[indexOf(entries, "*cortex.pingService")].Actual().(*pingService)
			assert.IsType(t, pingerProxy{}, pong.ping)
			assert.Equal(t, fmt.Sprintf("pong:ping-%d", ping.id), pong.Pong())
			assert.Equal(t, fmt.Sprintf("pong:ping-%d", ping.id), ping.pong.Pong())
		})
	}
}

func TestResolve_BudgetExceeded(t *testing.T) {
	descs := []*Descriptor{
		Describe[*alpha](func([]any) (any, error) { return &alpha{}, nil }, In[*beta]("beta")),
		Describe[*beta](func([]any) (any, error) { return &beta{}, nil }, In[*alpha]("alpha")),
	}

	cfg := DefaultConfig()
	cfg.MaxIterations = 25
	_, err := NewResolver(cfg).Resolve(descs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolutionBudgetExceeded)
	assert.Equal(t, CodeResolutionBudgetExceeded, CodeOf(err))
}

func TestResolve_FactoryProductWaitsForOwnerAndDependencies(t *testing.T) {
	rec := &recorder{}
	owner := Describe[*settingsSource](func([]any) (any, error) {
		rec.add("new source")
		return &settingsSource{version: 1}, nil
	})
	owner.Factories = []FactoryMember{
		BeanWith[*settingsSource, *settings]("Settings", []Param{In[*middle]("middle")},
			func(s *settingsSource, args []any) (*settings, error) {
				require.NotNil(t, Arg[*middle](args, 0))
				rec.add("new settings")
				return s.Settings(), nil
			}),
	}
	descs := append([]*Descriptor{owner}, chainDescriptors(rec)...)

	entries, err := NewResolver(DefaultConfig()).Resolve(descs, nil)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Less(t, rec.index("new source"), rec.index("new settings"))
	assert.Less(t, rec.index("new middle"), rec.index("new settings"))

	product := entries[indexOf(entries, "*cortex.settingsSource.Settings")]
	assert.True(t, product.Descriptor.IsProduct())
	assert.Same(t, product.Actual(), product.Exposed())
	assert.Equal(t, "*cortex.settingsSource", product.Owner().Descriptor.Key())
}

func TestResolve_ProductsSatisfyOtherComponents(t *testing.T) {
	rec := &recorder{}
	version := 0
	entries, err := NewResolver(DefaultConfig()).Resolve(settingsDescriptors(rec, &version), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"new source", "new settings", "new consumer"}, rec.list())
	c := entries[2].Actual().(*consumer)
	assert.Same(t, entries[1].Actual(), c.settings)

	product := entries[1]
	require.Len(t, product.Dependents(), 1)
	assert.Same(t, entries[2], product.Dependents()[0])
}

type named interface{ Name() string }
type sized interface{ Size() int }
type box struct{}

func (box) Name() string { return "box" }
func (box) Size() int    { return 1 }

type pair struct {
	n named
	s sized
}

func TestResolve_AmbiguousSlotsFailFast(t *testing.T) {
	descs := []*Descriptor{
		Describe[*pair](func(args []any) (any, error) {
			return &pair{n: Arg[named](args, 0), s: Arg[sized](args, 1)}, nil
		}, In[named]("n"), In[sized]("s")),
		Describe[box](func([]any) (any, error) { return box{}, nil }),
	}

	_, err := NewResolver(DefaultConfig()).Resolve(descs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousDependency)
}

func TestResolve_SameTypedSlotsShareInstance(t *testing.T) {
	type twin struct{ a, b Clock }
	c := &clock{tick: 1}
	d := Describe[*twin](func(args []any) (any, error) {
		return &twin{a: Arg[Clock](args, 0), b: Arg[Clock](args, 1)}, nil
	}, In[Clock]("a"), In[Clock]("b"))

	entries, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{d}, []Provided{ProvideAs[Clock](c)})
	require.NoError(t, err)
	tw := entries[1].Actual().(*twin)
	assert.Same(t, c, tw.a)
	assert.Same(t, c, tw.b)
}

func TestResolve_InvalidDescriptors(t *testing.T) {
	tests := []struct {
		name  string
		descs []*Descriptor
	}{
		{"nil descriptor", []*Descriptor{nil}},
		{"missing type", []*Descriptor{{Init: func([]any) (any, error) { return nil, nil }}}},
		{"missing initializer", []*Descriptor{{Type: TypeOf[*base]()}}},
		{"untyped factory member parameter", []*Descriptor{func() *Descriptor {
			d := Describe[*settingsSource](func([]any) (any, error) { return &settingsSource{}, nil })
			d.Factories = []FactoryMember{
				BeanWith[*settingsSource, *settings]("Settings", []Param{{Name: "version"}},
					func(s *settingsSource, _ []any) (*settings, error) { return s.Settings(), nil }),
			}
			return d
		}()}},
		{"duplicate type", []*Descriptor{
			Describe[*base](func([]any) (any, error) { return &base{}, nil }),
			Describe[*base](func([]any) (any, error) { return &base{}, nil }),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(DefaultConfig()).Resolve(tt.descs, nil)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestResolve_ConstructionFailuresAbortResolution(t *testing.T) {
	failing := Describe[*base](func([]any) (any, error) { return nil, errBoom })
	_, err := NewResolver(DefaultConfig()).Resolve([]*Descriptor{failing}, nil)
	assert.ErrorIs(t, err, ErrInstantiation)
	assert.ErrorIs(t, err, errBoom)

	panicking := Describe[*base](func([]any) (any, error) { panic("no") })
	_, err = NewResolver(DefaultConfig()).Resolve([]*Descriptor{panicking}, nil)
	assert.ErrorIs(t, err, ErrInstantiation)

	hooked := Describe[*base](func([]any) (any, error) { return &base{}, nil })
	hooked.PostCreate = func(any) error { return errBoom }
	_, err = NewResolver(DefaultConfig()).Resolve([]*Descriptor{hooked}, nil)
	assert.ErrorIs(t, err, ErrPostCreate)
	assert.ErrorIs(t, err, errBoom)

	hookPanics := Describe[*base](func([]any) (any, error) { return &base{}, nil })
	hookPanics.PostCreate = func(any) error { panic("hook blew up") }
	_, err = NewResolver(DefaultConfig()).Resolve([]*Descriptor{hookPanics}, nil)
	assert.ErrorIs(t, err, ErrPostCreate)
}

type countingObserver struct {
	NopObserver
	constructed []string
	components  int
}

func (o *countingObserver) Constructed(d *Descriptor, _ time.Duration) {
	o.constructed = append(o.constructed, d.Key())
}

func (o *countingObserver) Resolved(components, _ int) {
	o.components = components
}

func TestResolve_NotifiesObserver(t *testing.T) {
	obs := &countingObserver{}
	cfg := DefaultConfig()
	cfg.Observer = obs

	_, err := NewResolver(cfg).Resolve(chainDescriptors(&recorder{}), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, obs.components)
	assert.Equal(t, []string{"*cortex.base", "*cortex.middle", "*cortex.top"}, obs.constructed)
}
