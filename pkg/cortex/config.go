package cortex

import (
	"reflect"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxIterations is the default ceiling of non-productive worklist rotations
const DefaultMaxIterations = 100000

// Config configures the resolver and the registry
type Config struct {
	MaxIterations int `yaml:"max_iterations" toml:"max_iterations" json:"max_iterations"`

	// Provided instances bypass construction but take part in dependency
	// satisfaction and reload bookkeeping
	Provided []Provided `yaml:"-" toml:"-" json:"-"`

	Logger   *zap.Logger `yaml:"-" toml:"-" json:"-"`
	Observer Observer    `yaml:"-" toml:"-" json:"-"`
	Backend  Backend     `yaml:"-" toml:"-" json:"-"`
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Logger:        zap.NewNop(),
		Observer:      NopObserver{},
		Backend:       DefaultBackend{},
	}
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	if c.Backend == nil {
		c.Backend = DefaultBackend{}
	}
	return c
}

// Provided is an externally supplied instance
type Provided struct {
	Descriptor *Descriptor
	Instance   any
}

// Provide registers an instance under its dynamic type
func Provide(instance any) Provided {
	t := reflect.TypeOf(instance)
	return Provided{
		Descriptor: &Descriptor{Type: t, Name: t.String()},
		Instance:   instance,
	}
}

// ProvideAs registers an instance under the type T, typically an interface
func ProvideAs[T any](instance T) Provided {
	t := reflect.TypeFor[T]()
	return Provided{
		Descriptor: &Descriptor{Type: t, Name: t.String()},
		Instance:   instance,
	}
}

// Observer receives resolution and lifecycle events
type Observer interface {
	Constructed(d *Descriptor, elapsed time.Duration)
	Resolved(components, iterations int)
	Reloaded(d *Descriptor, err error)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) Constructed(*Descriptor, time.Duration) {}
func (NopObserver) Resolved(int, int)                      {}
func (NopObserver) Reloaded(*Descriptor, error)            {}
