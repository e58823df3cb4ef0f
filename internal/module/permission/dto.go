package permission

import "github.com/simp-lee/backoffice/internal/domain"

// RoleBlobResponse is the body returned for a role's permission blob.
type RoleBlobResponse struct {
	Role        string                `json:"role"`
	Permissions domain.PermissionBlob `json:"permissions"`
}
