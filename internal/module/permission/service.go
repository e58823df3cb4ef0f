package permission

import (
	"context"
	"log/slog"
	"maps"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/simp-lee/pagination"

	"github.com/simp-lee/backoffice/internal/domain"
)

var validRole = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,99}$`)

// permissionService implements domain.PermissionService. Blobs are cached per
// role and evicted when the role is replaced.
type permissionService struct {
	repo   domain.PermissionRepository
	cache  *cache.Cache
	logger *slog.Logger
}

// NewPermissionService creates a PermissionService whose blob cache entries
// live for ttl. A non-positive ttl disables caching.
func NewPermissionService(repo domain.PermissionRepository, ttl time.Duration, logger *slog.Logger) domain.PermissionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &permissionService{repo: repo, logger: logger}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// List returns a paginated list of permission rows.
func (s *permissionService) List(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.RolePermission], error) {
	return s.repo.List(ctx, req)
}

// Blob returns the permission blob of role. A role without rows gets an
// empty blob, which grants nothing.
func (s *permissionService) Blob(ctx context.Context, role string) (domain.PermissionBlob, error) {
	role = strings.TrimSpace(role)
	if err := validateRole(role); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if v, ok := s.cache.Get(role); ok {
			return maps.Clone(v.(domain.PermissionBlob)), nil
		}
	}

	rows, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	blob := make(domain.PermissionBlob, len(rows))
	for _, row := range rows {
		blob[row.Module] = row.Permission()
	}

	if s.cache != nil {
		s.cache.SetDefault(role, maps.Clone(blob))
	}
	return blob, nil
}

// Replace stores blob as the full permission set of role.
func (s *permissionService) Replace(ctx context.Context, role string, blob domain.PermissionBlob) (domain.PermissionBlob, error) {
	role = strings.TrimSpace(role)
	if err := validateRole(role); err != nil {
		return nil, err
	}

	rows, normalized, err := toRows(blob)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceRole(ctx, role, rows); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Delete(role)
	}

	s.logger.InfoContext(ctx, "permissions replaced",
		slog.String("role", role),
		slog.Int("modules", len(rows)),
	)
	return normalized, nil
}

// Seed writes the blob of every role that has no stored rows yet. Roles that
// already have rows are left alone so admin edits survive restarts.
func (s *permissionService) Seed(ctx context.Context, seed map[string]domain.PermissionBlob) error {
	roles := make([]string, 0, len(seed))
	for role := range seed {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		if err := validateRole(role); err != nil {
			return err
		}
		n, err := s.repo.CountByRole(ctx, role)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		rows, _, err := toRows(seed[role])
		if err != nil {
			return err
		}
		if err := s.repo.ReplaceRole(ctx, role, rows); err != nil {
			return err
		}
		if s.cache != nil {
			s.cache.Delete(role)
		}
		s.logger.InfoContext(ctx, "permissions seeded",
			slog.String("role", role),
			slog.Int("modules", len(rows)),
		)
	}
	return nil
}

func validateRole(role string) error {
	if role == "" {
		return domain.NewAppError(domain.CodeValidation, "role is required", nil)
	}
	if !validRole.MatchString(role) {
		return domain.NewAppError(domain.CodeValidation, "role contains invalid characters", nil)
	}
	return nil
}

// toRows converts a blob to rows sorted by module. Module names are trimmed;
// two names that normalize to the same module are rejected.
func toRows(blob domain.PermissionBlob) ([]domain.RolePermission, domain.PermissionBlob, error) {
	modules := make([]string, 0, len(blob))
	for m := range blob {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	rows := make([]domain.RolePermission, 0, len(blob))
	normalized := make(domain.PermissionBlob, len(blob))
	seen := make(map[string]string, len(blob))
	for _, m := range modules {
		name := strings.TrimSpace(m)
		if name == "" {
			return nil, nil, domain.NewAppError(domain.CodeValidation, "module name is required", nil)
		}
		if len(name) > 100 {
			return nil, nil, domain.NewAppError(domain.CodeValidation, "module name must be at most 100 characters", nil)
		}
		key := domain.NormalizeModule(name)
		if prev, dup := seen[key]; dup {
			return nil, nil, domain.NewAppError(domain.CodeValidation, "modules "+prev+" and "+name+" are the same module", nil)
		}
		seen[key] = name

		p := blob[m]
		normalized[name] = p
		rows = append(rows, domain.RolePermission{
			Module:    name,
			CanCreate: p.Create,
			CanUpdate: p.Update,
			CanDelete: p.Delete,
			CanShow:   p.Show,
		})
	}
	return rows, normalized, nil
}
