package adapters

import (
	"github.com/gofiber/fiber/v2"
)

// FiberAdapter serves the admin endpoints on a Fiber app
type FiberAdapter struct {
	admin *Admin
}

// NewFiberAdapter creates a new Fiber adapter
func NewFiberAdapter(admin *Admin) *FiberAdapter {
	return &FiberAdapter{admin: admin}
}

// Register mounts the endpoints on the router
func (fa *FiberAdapter) Register(r fiber.Router) {
	r.Get("/components", fa.list)
	r.Get("/components/:name", fa.get)
	r.Post("/components/:name/reload", fa.reload)
}

// Mount mounts the endpoints under prefix
func (fa *FiberAdapter) Mount(app *fiber.App, prefix string) {
	fa.Register(app.Group(prefix))
}

func (fa *FiberAdapter) list(c *fiber.Ctx) error {
	return c.Status(StatusFor(nil)).JSON(fa.admin.List())
}

func (fa *FiberAdapter) get(c *fiber.Ctx) error {
	view, err := fa.admin.Get(c.Params("name"))
	if err != nil {
		return c.Status(StatusFor(err)).JSON(ErrorBody{Error: err.Error()})
	}
	return c.Status(StatusFor(nil)).JSON(view)
}

func (fa *FiberAdapter) reload(c *fiber.Ctx) error {
	view, err := fa.admin.Reload(c.Params("name"), truthy(c.Query("cascade")))
	if err != nil {
		return c.Status(StatusFor(err)).JSON(ErrorBody{Error: err.Error()})
	}
	return c.Status(StatusFor(nil)).JSON(view)
}
