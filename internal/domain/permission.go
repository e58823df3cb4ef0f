package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/backoffice/internal/listing"
)

// Permission is the set of capabilities a role holds on one module.
type Permission struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
	Show   bool `json:"show"`
}

// Allows implements listing.Permissions.
func (p Permission) Allows(c listing.Capability) bool {
	switch c {
	case listing.CapNone:
		return true
	case listing.CapCreate:
		return p.Create
	case listing.CapUpdate:
		return p.Update
	case listing.CapDelete:
		return p.Delete
	case listing.CapShow:
		return p.Show
	}
	return false
}

// PermissionBlob maps module names to permissions for one role.
type PermissionBlob map[string]Permission

// For returns the permission for module. Lookup ignores case and the
// separators "_", "-" and " ", so "asset_group", "Asset Group" and
// "asset-group" resolve to the same entry. Unknown modules grant nothing.
func (b PermissionBlob) For(module string) Permission {
	if p, ok := b[module]; ok {
		return p
	}
	want := NormalizeModule(module)
	for name, p := range b {
		if NormalizeModule(name) == want {
			return p
		}
	}
	return Permission{}
}

// NormalizeModule canonicalizes a module name for comparison.
func NormalizeModule(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// ParsePermissionBlob decodes a stored or submitted blob. Flags may be JSON
// booleans, "true"/"false" strings or 1/0. "destroy" is accepted as an alias
// of "delete" and "all" grants every flag.
func ParsePermissionBlob(raw []byte) (PermissionBlob, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return PermissionBlob{}, nil
	}
	var modules map[string]map[string]any
	if err := json.Unmarshal(raw, &modules); err != nil {
		return nil, NewAppError(CodeValidation, "invalid permission blob", err)
	}
	blob := make(PermissionBlob, len(modules))
	for module, flags := range modules {
		p, err := ParsePermission(flags)
		if err != nil {
			return nil, NewAppError(CodeValidation, fmt.Sprintf("invalid permission for module %q", module), err)
		}
		blob[module] = p
	}
	return blob, nil
}

// ParsePermission decodes the flags of one module. Unknown keys are ignored.
func ParsePermission(flags map[string]any) (Permission, error) {
	var p Permission
	// "all" applies first so explicit flags can narrow it.
	for key, raw := range flags {
		if strings.EqualFold(key, "all") {
			v, ok := listing.ParseBool(raw)
			if !ok {
				return Permission{}, fmt.Errorf("flag %q: unrecognized value %v", key, raw)
			}
			if v {
				p = Permission{Create: true, Update: true, Delete: true, Show: true}
			}
		}
	}
	for key, raw := range flags {
		v, ok := listing.ParseBool(raw)
		if !ok {
			return Permission{}, fmt.Errorf("flag %q: unrecognized value %v", key, raw)
		}
		switch strings.ToLower(key) {
		case "create":
			p.Create = v
		case "update", "edit":
			p.Update = v
		case "delete", "destroy":
			p.Delete = v
		case "show", "view":
			p.Show = v
		}
	}
	return p, nil
}

// RolePermission is one persisted row of a role's permission blob.
type RolePermission struct {
	BaseModel
	Role      string `gorm:"size:100;not null;uniqueIndex:idx_role_module" json:"role"`
	Module    string `gorm:"size:100;not null;uniqueIndex:idx_role_module" json:"module"`
	CanCreate bool   `gorm:"not null;default:false" json:"can_create"`
	CanUpdate bool   `gorm:"not null;default:false" json:"can_update"`
	CanDelete bool   `gorm:"not null;default:false" json:"can_delete"`
	CanShow   bool   `gorm:"not null;default:false" json:"can_show"`
}

// Permission returns the flags of the row.
func (rp RolePermission) Permission() Permission {
	return Permission{Create: rp.CanCreate, Update: rp.CanUpdate, Delete: rp.CanDelete, Show: rp.CanShow}
}

// PermissionRepository defines the data access interface for role permissions.
type PermissionRepository interface {
	List(ctx context.Context, req PageRequest) (*pagination.Pagination[RolePermission], error)
	ListByRole(ctx context.Context, role string) ([]RolePermission, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	ReplaceRole(ctx context.Context, role string, rows []RolePermission) error
}

// PermissionService defines the business logic interface for role permissions.
type PermissionService interface {
	List(ctx context.Context, req PageRequest) (*pagination.Pagination[RolePermission], error)
	Blob(ctx context.Context, role string) (PermissionBlob, error)
	Replace(ctx context.Context, role string, blob PermissionBlob) (PermissionBlob, error)
	Seed(ctx context.Context, seed map[string]PermissionBlob) error
}
