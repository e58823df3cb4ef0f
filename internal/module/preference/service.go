package preference

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

var validStorageKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,149}$`)

// preferenceService implements domain.PreferenceService.
type preferenceService struct {
	repo   domain.PreferenceRepository
	tables map[string][]string
	logger *slog.Logger
}

// NewPreferenceService creates a PreferenceService. tables maps each storage
// key to its column keys; when it is non-nil, unknown storage keys and
// columns are rejected.
func NewPreferenceService(repo domain.PreferenceRepository, tables map[string][]string, logger *slog.Logger) domain.PreferenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &preferenceService{repo: repo, tables: tables, logger: logger}
}

// Get returns the stored preference, or an empty one when the table has no
// saved preference.
func (s *preferenceService) Get(ctx context.Context, owner, storageKey string) (*domain.ColumnPreference, error) {
	if _, err := s.columns(storageKey); err != nil {
		return nil, err
	}
	pref, err := s.repo.Get(ctx, owner, storageKey)
	if domain.IsNotFound(err) {
		return &domain.ColumnPreference{
			Owner:      owner,
			StorageKey: storageKey,
			Hidden:     []string{},
			Order:      []string{},
		}, nil
	}
	return pref, err
}

// Save stores the hidden columns and column order for a table.
func (s *preferenceService) Save(ctx context.Context, owner, storageKey string, hidden, order []string) (*domain.ColumnPreference, error) {
	columns, err := s.columns(storageKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(owner) == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "owner is required", nil)
	}
	hidden, err = cleanKeys("hidden", hidden, columns)
	if err != nil {
		return nil, err
	}
	order, err = cleanKeys("order", order, columns)
	if err != nil {
		return nil, err
	}
	if columns != nil && len(hidden) >= len(columns) {
		return nil, domain.NewAppError(domain.CodeValidation, "at least one column must stay visible", nil)
	}

	pref := &domain.ColumnPreference{
		Owner:      owner,
		StorageKey: storageKey,
		Hidden:     hidden,
		Order:      order,
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, owner, storageKey)
}

// Reset removes the stored preference so the table falls back to its
// configured columns. Resetting a table without a preference is a no-op.
func (s *preferenceService) Reset(ctx context.Context, owner, storageKey string) error {
	if _, err := s.columns(storageKey); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, owner, storageKey); err != nil && !domain.IsNotFound(err) {
		return err
	}
	return nil
}

// Layout returns the saved layout, or the default layout when none is stored
// or it cannot be read.
func (s *preferenceService) Layout(ctx context.Context, owner, storageKey string) listing.Layout {
	pref, err := s.repo.Get(ctx, owner, storageKey)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.WarnContext(ctx, "column preference unavailable",
				slog.String("storage_key", storageKey),
				slog.Any("error", err),
			)
		}
		return listing.Layout{}
	}
	return pref.Layout()
}

// columns validates storageKey and returns its known columns, or nil when
// tables is unrestricted.
func (s *preferenceService) columns(storageKey string) ([]string, error) {
	if !validStorageKey.MatchString(storageKey) {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid storage key", nil)
	}
	if s.tables == nil {
		return nil, nil
	}
	cols, ok := s.tables[storageKey]
	if !ok {
		return nil, domain.NewAppError(domain.CodeNotFound, fmt.Sprintf("unknown table %q", storageKey), nil)
	}
	return cols, nil
}

// cleanKeys trims and de-duplicates keys, rejecting any not in columns.
func cleanKeys(field string, keys, columns []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || slices.Contains(out, k) {
			continue
		}
		if columns != nil && !slices.Contains(columns, k) {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("%s: unknown column %q", field, k), nil)
		}
		out = append(out, k)
	}
	return out, nil
}
