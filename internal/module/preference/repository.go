package preference

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// preferenceRepository implements domain.PreferenceRepository using GORM.
type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new PreferenceRepository backed by the given GORM database.
func NewPreferenceRepository(db *gorm.DB) domain.PreferenceRepository {
	return &preferenceRepository{db: db}
}

// Get returns the preference of owner for storageKey.
func (r *preferenceRepository) Get(ctx context.Context, owner, storageKey string) (*domain.ColumnPreference, error) {
	var pref domain.ColumnPreference
	if err := r.db.WithContext(ctx).
		Where("owner = ? AND storage_key = ?", owner, storageKey).
		First(&pref).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}
	return &pref, nil
}

// Upsert inserts pref or updates the hidden and order columns of the existing
// row with the same owner and storage key.
func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.ColumnPreference) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"hidden_columns", "column_order", "updated_at"}),
	}).Create(pref).Error
	return pkg.MapDBError(err)
}

// Delete removes the preference of owner for storageKey.
func (r *preferenceRepository) Delete(ctx context.Context, owner, storageKey string) error {
	result := r.db.WithContext(ctx).
		Where("owner = ? AND storage_key = ?", owner, storageKey).
		Delete(&domain.ColumnPreference{})
	if result.Error != nil {
		return pkg.MapDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
