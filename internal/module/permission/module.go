package permission

import "github.com/gin-gonic/gin"

// PermissionModule implements the app.Module interface for role permissions.
type PermissionModule struct {
	handler *PermissionHandler
}

// NewModule creates a new PermissionModule with the given handler.
// Panics if h is nil.
func NewModule(h *PermissionHandler) *PermissionModule {
	if h == nil {
		panic("permission.NewModule: handler must not be nil")
	}
	return &PermissionModule{handler: h}
}

// RegisterRoutes registers the permission API routes. The module has no pages.
func (m *PermissionModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	api.GET("/permissions", m.handler.List)
	api.GET("/roles/:role/permissions", m.handler.Get)
	api.PUT("/roles/:role/permissions", m.handler.Replace)
}
