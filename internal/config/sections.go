package config

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/simp-lee/backoffice/internal/listing"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultSessionCookie  = "_bo_session"
	DefaultMaxPageSize    = 100
	DefaultSearchDebounce = "800ms"
	DefaultViewTTL        = "30m"
	DefaultBackendTimeout = "30s"
	DefaultPermissionTTL  = "5m"
	DefaultRole           = "viewer"
)

var entityNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// BackendConfig points at the upstream REST backend.
type BackendConfig struct {
	BaseURL string `koanf:"base_url"`
	Token   string `koanf:"token"`
	Timeout string `koanf:"timeout"`
}

// ListingConfig tunes list pages.
type ListingConfig struct {
	DefaultPageSize int    `koanf:"default_page_size"`
	MaxPageSize     int    `koanf:"max_page_size"`
	SearchDebounce  string `koanf:"search_debounce"`
	ViewTTL         string `koanf:"view_ttl"`
}

// PermissionsConfig controls role permission lookup.
type PermissionsConfig struct {
	DefaultRole string `koanf:"default_role"`
	CacheTTL    string `koanf:"cache_ttl"`
	// TrustRoleHeader accepts the X-User-Role header set by the
	// authenticating proxy. Without it every caller gets DefaultRole.
	TrustRoleHeader bool `koanf:"trust_role_header"`
	// Seed maps role -> module -> flag -> value. Roles that already have
	// stored permissions are left untouched.
	Seed map[string]map[string]map[string]any `koanf:"seed"`
}

// FilterConfig declares one filter control on a list page. Key follows the
// filter suffix convention (status, name__like, created_at__from).
type FilterConfig struct {
	Key     string   `json:"key" koanf:"key"`
	Label   string   `json:"label" koanf:"label"`
	Type    string   `json:"type" koanf:"type"`
	Options []string `json:"options,omitempty" koanf:"options"`
}

// EntityConfig describes one back-office entity served by the upstream.
type EntityConfig struct {
	Name             string                 `koanf:"name"`
	Label            string                 `koanf:"label"`
	Endpoint         string                 `koanf:"endpoint"`
	ItemPath         string                 `koanf:"item_path"`
	TogglePath       string                 `koanf:"toggle_path"`
	ToggleMethod     string                 `koanf:"toggle_method"`
	CollectionKey    string                 `koanf:"collection_key"`
	ObjectKey        string                 `koanf:"object_key"`
	PayloadKey       string                 `koanf:"payload_key"`
	PermissionModule string                 `koanf:"permission_module"`
	Columns          []listing.ColumnConfig `koanf:"columns"`
	SearchFields     []string               `koanf:"search_fields"`
	Filters          []FilterConfig         `koanf:"filters"`
	StatusField      string                 `koanf:"status_field"`
	Required         []string               `koanf:"required"`
	PageSize         int                    `koanf:"page_size"`
	DisabledWhen     string                 `koanf:"disabled_when"`
}

// Duration parses an already validated duration string, returning def when
// it is empty.
func Duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}

func parseOptionalDuration(name string, value *string) (time.Duration, error) {
	v := strings.TrimSpace(*value)
	*value = v
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be greater than 0", name, v)
	}
	return d, nil
}

func (c *Config) validateBackend() error {
	base := strings.TrimSpace(c.Backend.BaseURL)
	if base == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: must be an absolute http(s) URL", c.Backend.BaseURL)
	}
	c.Backend.BaseURL = strings.TrimRight(base, "/")
	c.Backend.Token = strings.TrimSpace(c.Backend.Token)

	if strings.TrimSpace(c.Backend.Timeout) == "" {
		c.Backend.Timeout = DefaultBackendTimeout
	}
	_, err = parseOptionalDuration("backend.timeout", &c.Backend.Timeout)
	return err
}

func (c *Config) validateListing() error {
	l := &c.Listing
	if l.DefaultPageSize == 0 {
		l.DefaultPageSize = listing.DefaultPageSize
	}
	if l.MaxPageSize == 0 {
		l.MaxPageSize = DefaultMaxPageSize
	}
	if l.DefaultPageSize < 1 {
		return fmt.Errorf("invalid listing.default_page_size %d: must be positive", l.DefaultPageSize)
	}
	if l.MaxPageSize < l.DefaultPageSize {
		return fmt.Errorf("invalid listing.max_page_size %d: must be at least listing.default_page_size (%d)", l.MaxPageSize, l.DefaultPageSize)
	}

	if strings.TrimSpace(l.SearchDebounce) == "" {
		l.SearchDebounce = DefaultSearchDebounce
	}
	if _, err := parseOptionalDuration("listing.search_debounce", &l.SearchDebounce); err != nil {
		return err
	}
	if strings.TrimSpace(l.ViewTTL) == "" {
		l.ViewTTL = DefaultViewTTL
	}
	_, err := parseOptionalDuration("listing.view_ttl", &l.ViewTTL)
	return err
}

func (c *Config) validatePermissions() error {
	p := &c.Permissions
	p.DefaultRole = strings.TrimSpace(p.DefaultRole)
	if p.DefaultRole == "" {
		p.DefaultRole = DefaultRole
	}
	if strings.TrimSpace(p.CacheTTL) == "" {
		p.CacheTTL = DefaultPermissionTTL
	}
	if _, err := parseOptionalDuration("permissions.cache_ttl", &p.CacheTTL); err != nil {
		return err
	}
	for role := range p.Seed {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("permissions.seed contains an empty role name")
		}
	}
	return nil
}

func (c *Config) validateEntities() error {
	seen := make(map[string]struct{}, len(c.Entities))
	for i := range c.Entities {
		e := &c.Entities[i]
		prefix := fmt.Sprintf("entities[%d]", i)

		e.Name = strings.TrimSpace(e.Name)
		if !entityNamePattern.MatchString(e.Name) {
			return fmt.Errorf("invalid %s.name %q: must match %s", prefix, e.Name, entityNamePattern)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate entity name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		prefix = fmt.Sprintf("entities.%s", e.Name)

		e.Endpoint = strings.TrimSpace(e.Endpoint)
		if e.Endpoint == "" {
			return fmt.Errorf("%s.endpoint is required", prefix)
		}
		if e.ItemPath == "" {
			e.ItemPath = defaultItemPath(e.Endpoint)
		}
		if !strings.Contains(e.ItemPath, "{id}") {
			return fmt.Errorf("invalid %s.item_path %q: must contain {id}", prefix, e.ItemPath)
		}
		if e.TogglePath != "" && !strings.Contains(e.TogglePath, "{id}") {
			return fmt.Errorf("invalid %s.toggle_path %q: must contain {id}", prefix, e.TogglePath)
		}
		switch e.ToggleMethod = strings.ToUpper(strings.TrimSpace(e.ToggleMethod)); e.ToggleMethod {
		case "":
			e.ToggleMethod = http.MethodPatch
		case http.MethodPatch, http.MethodPut:
		default:
			return fmt.Errorf("invalid %s.toggle_method %q: must be PATCH or PUT", prefix, e.ToggleMethod)
		}
		if e.Label == "" {
			e.Label = e.Name
		}
		if e.PermissionModule == "" {
			e.PermissionModule = e.Name
		}

		if len(e.Columns) == 0 {
			return fmt.Errorf("%s.columns must not be empty", prefix)
		}
		for j, col := range e.Columns {
			if strings.TrimSpace(col.Key) == "" {
				return fmt.Errorf("%s.columns[%d].key is required", prefix, j)
			}
			switch col.Requires {
			case listing.CapNone, listing.CapCreate, listing.CapUpdate, listing.CapDelete, listing.CapShow:
			default:
				return fmt.Errorf("invalid %s.columns[%d].requires %q", prefix, j, col.Requires)
			}
		}

		for j, f := range e.Filters {
			if strings.TrimSpace(f.Key) == "" {
				return fmt.Errorf("%s.filters[%d].key is required", prefix, j)
			}
			switch f.Type {
			case "":
				e.Filters[j].Type = "text"
			case "text", "select", "date", "boolean":
			default:
				return fmt.Errorf("invalid %s.filters[%d].type %q: must be one of text, select, date, boolean", prefix, j, f.Type)
			}
			if e.Filters[j].Label == "" {
				e.Filters[j].Label = f.Key
			}
		}

		if e.PageSize == 0 {
			e.PageSize = c.Listing.DefaultPageSize
		}
		if e.PageSize < 1 || e.PageSize > c.Listing.MaxPageSize {
			return fmt.Errorf("invalid %s.page_size %d: must be between 1 and %d", prefix, e.PageSize, c.Listing.MaxPageSize)
		}

		if _, err := listing.CompileRowRule(e.DisabledWhen); err != nil {
			return fmt.Errorf("invalid %s.disabled_when: %w", prefix, err)
		}
	}
	return nil
}

// defaultItemPath derives "/sites/{id}.json" from "/sites.json" and
// "/sites/{id}" from "/sites".
func defaultItemPath(endpoint string) string {
	path, query, _ := strings.Cut(endpoint, "?")
	out := strings.TrimSuffix(path, ".json") + "/{id}"
	if strings.HasSuffix(path, ".json") {
		out += ".json"
	}
	if query != "" {
		out += "?" + query
	}
	return out
}
