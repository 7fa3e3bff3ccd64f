package cortex

import (
	"errors"
	"fmt"
	"sync"
)

type Clock interface {
	Now() int
}

type clock struct {
	tick int
}

func (c *clock) Now() int { return c.tick }

type Pinger interface {
	Ping() string
}

type Ponger interface {
	Pong() string
}

type pingService struct {
	id   int
	pong Ponger
}

func (p *pingService) Ping() string { return fmt.Sprintf("ping-%d", p.id) }

type pingerProxy struct {
	h *Handle
}

func (p pingerProxy) Ping() string { return Current[Pinger](p.h).Ping() }

type pongService struct {
	ping Pinger
}

func (p *pongService) Pong() string { return "pong:" + p.ping.Ping() }

type adminMarker struct{}

func (adminMarker) MarkerName() string { return "admin" }

type serviceMarker struct{}

func (serviceMarker) MarkerName() string { return "service" }

// recorder tracks construction and destruction order across a test
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) index(event string) int {
	for i, e := range r.list() {
		if e == event {
			return i
		}
	}
	return -1
}

func pingDescriptor(rec *recorder, next *int) *Descriptor {
	d := Describe[*pingService](func(args []any) (any, error) {
		*next++
		rec.add("new ping")
		return &pingService{id: *next, pong: Arg[Ponger](args, 0)}, nil
	}, In[Ponger]("pong"))
	d.Proxy = ProxyOf[Pinger](func(h *Handle) Pinger { return pingerProxy{h: h} })
	d.PreDestroy = HookOf[*pingService](func(p *pingService) error {
		rec.add("destroy ping-%d", p.id)
		return nil
	})
	return d
}

func pongDescriptor(rec *recorder) *Descriptor {
	return Describe[*pongService](func(args []any) (any, error) {
		rec.add("new pong")
		return &pongService{ping: Arg[Pinger](args, 0)}, nil
	}, Deferred[Pinger]("ping"))
}

// chain types: base <- middle <- top. base carries a field so that distinct
// instances never share the zero-size allocation address.
type base struct{ id int }
type middle struct{ base *base }
type top struct {
	middle *middle
	clock  Clock
}

func chainDescriptors(rec *recorder) []*Descriptor {
	return []*Descriptor{
		Describe[*top](func(args []any) (any, error) {
			rec.add("new top")
			return &top{middle: Arg[*middle](args, 0)}, nil
		}, In[*middle]("middle")),
		Describe[*middle](func(args []any) (any, error) {
			rec.add("new middle")
			return &middle{base: Arg[*base](args, 0)}, nil
		}, In[*base]("base")),
		Describe[*base](func([]any) (any, error) {
			rec.add("new base")
			return &base{}, nil
		}),
	}
}

// settings is produced by settingsSource through a factory member
type settings struct {
	version int
}

type settingsSource struct {
	version int
}

func (s *settingsSource) Settings() *settings { return &settings{version: s.version} }

type consumer struct {
	settings *settings
}

func settingsDescriptors(rec *recorder, version *int) []*Descriptor {
	source := Describe[*settingsSource](func([]any) (any, error) {
		*version++
		rec.add("new source")
		return &settingsSource{version: *version}, nil
	})
	source.Factories = []FactoryMember{
		Bean[*settingsSource, *settings]("Settings", func(s *settingsSource) *settings {
			rec.add("new settings")
			return s.Settings()
		}),
	}
	return []*Descriptor{
		Describe[*consumer](func(args []any) (any, error) {
			rec.add("new consumer")
			return &consumer{settings: Arg[*settings](args, 0)}, nil
		}, In[*settings]("settings")),
		source,
	}
}

var errBoom = errors.New("boom")
