package permission

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// AdminModule is the permission module that guards the role admin API.
const AdminModule = "role"

// PermissionHandler handles REST API requests for role permissions.
type PermissionHandler struct {
	svc domain.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler with the given service.
func NewPermissionHandler(svc domain.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// List handles GET /api/v1/permissions.
func (h *PermissionHandler) List(c *gin.Context) {
	if !h.authorize(c, listing.CapShow) {
		return
	}
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.List(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}

// Get handles GET /api/v1/roles/:role/permissions.
func (h *PermissionHandler) Get(c *gin.Context) {
	if !h.authorize(c, listing.CapShow) {
		return
	}
	role := c.Param("role")

	blob, err := h.svc.Blob(c.Request.Context(), role)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, RoleBlobResponse{Role: role, Permissions: blob})
}

// Replace handles PUT /api/v1/roles/:role/permissions. The body is a blob
// whose flags may be booleans, "true"/"false" strings or 1/0.
func (h *PermissionHandler) Replace(c *gin.Context) {
	if !h.authorize(c, listing.CapUpdate) {
		return
	}
	role := c.Param("role")

	raw, err := c.GetRawData()
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "unreadable request body", err))
		return
	}
	blob, err := domain.ParsePermissionBlob(raw)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	saved, err := h.svc.Replace(c.Request.Context(), role, blob)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, RoleBlobResponse{Role: role, Permissions: saved})
}

// authorize checks the caller's own blob for capability on AdminModule and
// writes a 403 when it is missing.
func (h *PermissionHandler) authorize(c *gin.Context, capability listing.Capability) bool {
	blob, err := h.svc.Blob(c.Request.Context(), middleware.GetRole(c))
	if err != nil {
		pkg.Error(c, err)
		return false
	}
	if !blob.For(AdminModule).Allows(capability) {
		pkg.Error(c, domain.ErrForbidden)
		return false
	}
	return true
}
