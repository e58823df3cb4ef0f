package preference

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// PreferenceHandler handles REST API requests for column preferences. The
// owner of a preference is the caller role.
type PreferenceHandler struct {
	svc domain.PreferenceService
}

// NewPreferenceHandler creates a new PreferenceHandler with the given service.
func NewPreferenceHandler(svc domain.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{svc: svc}
}

// Get handles GET /api/v1/preferences/:storage_key.
func (h *PreferenceHandler) Get(c *gin.Context) {
	pref, err := h.svc.Get(c.Request.Context(), middleware.GetRole(c), c.Param("storage_key"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, pref)
}

// Save handles PUT /api/v1/preferences/:storage_key.
func (h *PreferenceHandler) Save(c *gin.Context) {
	var req SaveRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	pref, err := h.svc.Save(c.Request.Context(), middleware.GetRole(c), c.Param("storage_key"), req.Hidden, req.Order)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, pref)
}

// Reset handles DELETE /api/v1/preferences/:storage_key.
func (h *PreferenceHandler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context(), middleware.GetRole(c), c.Param("storage_key")); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}
