package permission

import (
	"context"

	"github.com/simp-lee/pagination"
	"gorm.io/gorm"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// Allowed fields for sorting and filtering in List queries.
var (
	allowedSortFields   = []string{"id", "role", "module", "created_at", "updated_at"}
	allowedFilterFields = []string{"role", "module"}
)

// permissionRepository implements domain.PermissionRepository using GORM.
type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository creates a new PermissionRepository backed by the given GORM database.
func NewPermissionRepository(db *gorm.DB) domain.PermissionRepository {
	return &permissionRepository{db: db}
}

// List returns a paginated, sorted, and filtered list of permission rows.
func (r *permissionRepository) List(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.RolePermission], error) {
	base := r.db.WithContext(ctx).Model(&domain.RolePermission{}).
		Scopes(pkg.Filter(req, allowedFilterFields))
	return pkg.PageQuery[domain.RolePermission](ctx, base, req, pkg.Sort(req, allowedSortFields))
}

// ListByRole returns every module row of a role ordered by module name.
func (r *permissionRepository) ListByRole(ctx context.Context, role string) ([]domain.RolePermission, error) {
	var rows []domain.RolePermission
	if err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("module asc").
		Find(&rows).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}
	return rows, nil
}

// CountByRole returns how many module rows a role has.
func (r *permissionRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.RolePermission{}).
		Where("role = ?", role).
		Count(&n).Error; err != nil {
		return 0, pkg.MapDBError(err)
	}
	return n, nil
}

// ReplaceRole deletes the rows of role and inserts rows in one transaction.
func (r *permissionRepository) ReplaceRole(ctx context.Context, role string, rows []domain.RolePermission) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("role = ?", role).Delete(&domain.RolePermission{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].Role = role
		}
		return tx.Create(&rows).Error
	})
	return pkg.MapDBError(err)
}
