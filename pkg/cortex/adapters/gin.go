package adapters

import (
	"github.com/gin-gonic/gin"
)

// GinAdapter serves the admin endpoints on a Gin router
type GinAdapter struct {
	admin *Admin
}

// NewGinAdapter creates a new Gin adapter
func NewGinAdapter(admin *Admin) *GinAdapter {
	return &GinAdapter{admin: admin}
}

// Register mounts the endpoints on the router group
func (ga *GinAdapter) Register(g *gin.RouterGroup) {
	g.GET("/components", ga.list)
	g.GET("/components/:name", ga.get)
	g.POST("/components/:name/reload", ga.reload)
}

// Mount mounts the endpoints under prefix
func (ga *GinAdapter) Mount(engine *gin.Engine, prefix string) {
	ga.Register(engine.Group(prefix))
}

func (ga *GinAdapter) list(c *gin.Context) {
	c.JSON(StatusFor(nil), ga.admin.List())
}

func (ga *GinAdapter) get(c *gin.Context) {
	view, err := ga.admin.Get(c.Param("name"))
	if err != nil {
		c.JSON(StatusFor(err), ErrorBody{Error: err.Error()})
		return
	}
	c.JSON(StatusFor(nil), view)
}

func (ga *GinAdapter) reload(c *gin.Context) {
	view, err := ga.admin.Reload(c.Param("name"), truthy(c.Query("cascade")))
	if err != nil {
		c.JSON(StatusFor(err), ErrorBody{Error: err.Error()})
		return
	}
	c.JSON(StatusFor(nil), view)
}
