package adapters

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiAdapter serves the admin endpoints on a chi router
type ChiAdapter struct {
	admin *Admin
}

// NewChiAdapter creates a new chi adapter
func NewChiAdapter(admin *Admin) *ChiAdapter {
	return &ChiAdapter{admin: admin}
}

// Routes returns a router serving the endpoints, ready to be mounted
func (ca *ChiAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/components", ca.list)
	r.Get("/components/{name}", ca.get)
	r.Post("/components/{name}/reload", ca.reload)
	return r
}

func (ca *ChiAdapter) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StatusFor(nil), ca.admin.List())
}

func (ca *ChiAdapter) get(w http.ResponseWriter, r *http.Request) {
	view, err := ca.admin.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, StatusFor(err), ErrorBody{Error: err.Error()})
		return
	}
	writeJSON(w, StatusFor(nil), view)
}

func (ca *ChiAdapter) reload(w http.ResponseWriter, r *http.Request) {
	view, err := ca.admin.Reload(chi.URLParam(r, "name"), truthy(r.URL.Query().Get("cascade")))
	if err != nil {
		writeJSON(w, StatusFor(err), ErrorBody{Error: err.Error()})
		return
	}
	writeJSON(w, StatusFor(nil), view)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
