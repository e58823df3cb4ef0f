package domain

import (
	"context"

	"github.com/simp-lee/backoffice/internal/listing"
)

// ColumnPreference stores the visible columns and their order for one table.
type ColumnPreference struct {
	BaseModel
	Owner      string   `gorm:"size:100;not null;uniqueIndex:idx_owner_key" json:"owner"`
	StorageKey string   `gorm:"size:150;not null;uniqueIndex:idx_owner_key" json:"storage_key"`
	Hidden     []string `gorm:"column:hidden_columns;serializer:json" json:"hidden"`
	Order      []string `gorm:"column:column_order;serializer:json" json:"order"`
}

// Layout converts the preference for table rendering.
func (p *ColumnPreference) Layout() listing.Layout {
	if p == nil {
		return listing.Layout{}
	}
	return listing.Layout{Hidden: p.Hidden, Order: p.Order}
}

// PreferenceRepository defines the data access interface for column preferences.
type PreferenceRepository interface {
	Get(ctx context.Context, owner, storageKey string) (*ColumnPreference, error)
	Upsert(ctx context.Context, pref *ColumnPreference) error
	Delete(ctx context.Context, owner, storageKey string) error
}

// PreferenceService defines the business logic interface for column preferences.
type PreferenceService interface {
	Get(ctx context.Context, owner, storageKey string) (*ColumnPreference, error)
	Save(ctx context.Context, owner, storageKey string, hidden, order []string) (*ColumnPreference, error)
	Reset(ctx context.Context, owner, storageKey string) error
	Layout(ctx context.Context, owner, storageKey string) listing.Layout
}
