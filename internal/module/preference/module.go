package preference

import "github.com/gin-gonic/gin"

// PreferenceModule implements the app.Module interface for column preferences.
type PreferenceModule struct {
	handler *PreferenceHandler
}

// NewModule creates a new PreferenceModule with the given handler.
// Panics if h is nil.
func NewModule(h *PreferenceHandler) *PreferenceModule {
	if h == nil {
		panic("preference.NewModule: handler must not be nil")
	}
	return &PreferenceModule{handler: h}
}

// RegisterRoutes registers the preference API routes. The module has no pages.
func (m *PreferenceModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	api.GET("/preferences/:storage_key", m.handler.Get)
	api.PUT("/preferences/:storage_key", m.handler.Save)
	api.DELETE("/preferences/:storage_key", m.handler.Reset)
}
