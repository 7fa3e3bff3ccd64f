package adapters

import (
	"github.com/labstack/echo/v4"
)

// EchoAdapter serves the admin endpoints on an Echo instance
type EchoAdapter struct {
	admin *Admin
}

// NewEchoAdapter creates a new Echo adapter
func NewEchoAdapter(admin *Admin) *EchoAdapter {
	return &EchoAdapter{admin: admin}
}

// Register mounts the endpoints on the group
func (ea *EchoAdapter) Register(g *echo.Group) {
	g.GET("/components", ea.list)
	g.GET("/components/:name", ea.get)
	g.POST("/components/:name/reload", ea.reload)
}

// Mount mounts the endpoints under prefix
func (ea *EchoAdapter) Mount(e *echo.Echo, prefix string) {
	ea.Register(e.Group(prefix))
}

func (ea *EchoAdapter) list(c echo.Context) error {
	return c.JSON(StatusFor(nil), ea.admin.List())
}

func (ea *EchoAdapter) get(c echo.Context) error {
	view, err := ea.admin.Get(c.Param("name"))
	if err != nil {
		return c.JSON(StatusFor(err), ErrorBody{Error: err.Error()})
	}
	return c.JSON(StatusFor(nil), view)
}

func (ea *EchoAdapter) reload(c echo.Context) error {
	view, err := ea.admin.Reload(c.Param("name"), truthy(c.QueryParam("cascade")))
	if err != nil {
		return c.JSON(StatusFor(err), ErrorBody{Error: err.Error()})
	}
	return c.JSON(StatusFor(nil), view)
}
