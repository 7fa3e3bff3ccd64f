// Package adapters exposes a registry's components over HTTP for inspection
// and hot reload, on top of the common Go web frameworks
package adapters

import (
	"errors"
	"net/http"
	"sort"

	"github.com/toyz/cortex/pkg/cortex"
)

// View is the JSON representation of a registry entry
type View struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Marker     string   `json:"marker,omitempty"`
	Product    bool     `json:"product"`
	Owner      string   `json:"owner,omitempty"`
	Live       bool     `json:"live"`
	Generation string   `json:"generation,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
}

// ErrorBody is returned with every non-2xx response
type ErrorBody struct {
	Error string `json:"error"`
}

// ViewOf builds the view of an entry
func ViewOf(e *cortex.Entry) View {
	d := e.Descriptor
	v := View{
		Name:    d.Key(),
		Type:    d.Type.String(),
		Product: d.IsProduct(),
		Live:    e.Actual() != nil,
	}
	if d.Marker != nil {
		v.Marker = d.Marker.MarkerName()
	}
	if d.IsProduct() {
		v.Owner = d.Owner.Key()
	}
	if v.Live {
		v.Generation = e.Generation().String()
	}
	for _, dep := range e.Dependents() {
		v.Dependents = append(v.Dependents, dep.Descriptor.Key())
	}
	sort.Strings(v.Dependents)
	return v
}

// Admin implements the framework independent part of the admin endpoints
type Admin struct {
	registry *cortex.Registry
}

// NewAdmin creates the admin surface of a registry
func NewAdmin(reg *cortex.Registry) *Admin {
	return &Admin{registry: reg}
}

// List returns the views of every component in resolution order
func (a *Admin) List() []View {
	entries := a.registry.GetAllServices()
	views := make([]View, len(entries))
	for i, e := range entries {
		views[i] = ViewOf(e)
	}
	return views
}

// Get returns the view of the named component
func (a *Admin) Get(name string) (View, error) {
	e, ok := a.registry.Lookup(name)
	if !ok {
		return View{}, &cortex.Error{Code: cortex.CodeServiceNotFound, Component: name}
	}
	return ViewOf(e), nil
}

// Reload reloads the named component, cascading to its dependents on request
func (a *Admin) Reload(name string, cascade bool) (View, error) {
	e, ok := a.registry.Lookup(name)
	if !ok {
		return View{}, &cortex.Error{Code: cortex.CodeServiceNotFound, Component: name}
	}
	var err error
	if cascade {
		err = a.registry.ReloadCascade(e)
	} else {
		err = a.registry.Reload(e)
	}
	return ViewOf(e), err
}

// StatusFor maps a registry error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, cortex.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, cortex.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func truthy(v string) bool {
	switch v {
	case "1", "true", "yes":
		return true
	}
	return false
}
