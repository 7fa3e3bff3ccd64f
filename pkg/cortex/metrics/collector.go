// Package metrics exposes resolution and lifecycle events as Prometheus metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toyz/cortex/pkg/cortex"
)

// Collector implements cortex.Observer on top of its own Prometheus registry
type Collector struct {
	registry *prometheus.Registry

	Constructions     *prometheus.CounterVec
	ConstructDuration *prometheus.HistogramVec
	Reloads           *prometheus.CounterVec
	Components        prometheus.Gauge
	Iterations        prometheus.Gauge
}

var _ cortex.Observer = (*Collector)(nil)

// NewCollector creates a collector whose metrics live under namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	constructions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constructions_total",
			Help:      "Total number of component instances constructed during resolution",
		},
		[]string{"component"},
	)

	constructDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "construct_duration_seconds",
			Help:      "Time spent in component initializers",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	reloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Total number of component reloads",
		},
		[]string{"component", "result"},
	)

	components := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "components",
			Help:      "Number of components produced by the last resolution",
		},
	)

	iterations := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolve_iterations",
			Help:      "Non-productive worklist rotations of the last resolution",
		},
	)

	registry.MustRegister(constructions, constructDuration, reloads, components, iterations)

	return &Collector{
		registry:          registry,
		Constructions:     constructions,
		ConstructDuration: constructDuration,
		Reloads:           reloads,
		Components:        components,
		Iterations:        iterations,
	}
}

// Registry returns the Prometheus registry holding the collector's metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Constructed implements cortex.Observer
func (c *Collector) Constructed(d *cortex.Descriptor, elapsed time.Duration) {
	c.Constructions.WithLabelValues(d.Key()).Inc()
	c.ConstructDuration.WithLabelValues(d.Key()).Observe(elapsed.Seconds())
}

// Resolved implements cortex.Observer
func (c *Collector) Resolved(components, iterations int) {
	c.Components.Set(float64(components))
	c.Iterations.Set(float64(iterations))
}

// Reloaded implements cortex.Observer
func (c *Collector) Reloaded(d *cortex.Descriptor, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.Reloads.WithLabelValues(d.Key(), result).Inc()
}
