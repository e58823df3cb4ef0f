package resource

import "github.com/gin-gonic/gin"

// ResourceModule implements the app.Module interface for configured entities.
type ResourceModule struct {
	handler     *ResourceHandler
	pageHandler *ResourcePageHandler
}

// NewModule creates a new ResourceModule with the given handlers.
// Panics if h or ph is nil.
func NewModule(h *ResourceHandler, ph *ResourcePageHandler) *ResourceModule {
	if h == nil {
		panic("resource.NewModule: handler must not be nil")
	}
	if ph == nil {
		panic("resource.NewModule: pageHandler must not be nil")
	}
	return &ResourceModule{handler: h, pageHandler: ph}
}

// RegisterRoutes registers resource API and page routes.
func (m *ResourceModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	// API routes
	api.GET("/resources", m.handler.Index)
	api.GET("/resources/:entity", m.handler.List)
	api.GET("/resources/:entity/export", m.handler.Export)
	api.GET("/resources/:entity/:id", m.handler.Get)
	api.POST("/resources/:entity", m.handler.Create)
	api.POST("/resources/:entity/bulk", m.handler.Bulk)
	api.PUT("/resources/:entity/:id", m.handler.Update)
	api.DELETE("/resources/:entity/:id", m.handler.Delete)
	api.PATCH("/resources/:entity/:id/toggle", m.handler.Toggle)

	// Page routes
	pages.GET("/resources/:entity", m.pageHandler.ListPage)
	pages.GET("/resources/:entity/export", m.handler.Export)
	pages.GET("/resources/:entity/new", m.pageHandler.NewPage)
	pages.GET("/resources/:entity/:id", m.pageHandler.DetailPage)
	pages.GET("/resources/:entity/:id/edit", m.pageHandler.EditPage)
	pages.POST("/resources/:entity", m.pageHandler.CreateHTMX)
	pages.POST("/resources/:entity/bulk", m.pageHandler.BulkHTMX)
	pages.PUT("/resources/:entity/:id", m.pageHandler.UpdateHTMX)
	pages.DELETE("/resources/:entity/:id", m.pageHandler.DeleteHTMX)
	pages.PATCH("/resources/:entity/:id/toggle", m.pageHandler.ToggleHTMX)
}

// Home returns the handler of the entity index page.
func (m *ResourceModule) Home() gin.HandlerFunc {
	return m.pageHandler.HomePage
}
