package resource

import (
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/simp-lee/backoffice/internal/config"
	"github.com/simp-lee/backoffice/internal/listing"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// EntitySummary describes an entity to API clients.
type EntitySummary struct {
	Name       string                `json:"name"`
	Label      string                `json:"label"`
	Filters    []config.FilterConfig `json:"filters"`
	FormFields []string              `json:"form_fields"`
	Required   []string              `json:"required"`
	HasToggle  bool                  `json:"has_toggle"`
}

// BulkRequest selects records for a bulk action.
type BulkRequest struct {
	Action string   `json:"action" form:"action" binding:"required,oneof=delete toggle activate deactivate"`
	IDs    []string `json:"ids" form:"ids" binding:"required,min=1,max=100,dive,required,max=100"`
}

// ListResponse is the JSON body of a list request.
type ListResponse struct {
	*ListResult
	Entity EntitySummary `json:"entity"`
}

func summarize(e *Entity) EntitySummary {
	return EntitySummary{
		Name:       e.Name,
		Label:      e.Label,
		Filters:    e.Filters,
		FormFields: e.FormFields(),
		Required:   e.Required,
		HasToggle:  e.HasToggle(),
	}
}

// FormView is the template data of the generic create and edit form.
type FormView struct {
	Entity    *Entity
	IsEdit    bool
	ID        string
	Values    map[string]string
	Status    bool
	Errors    map[string]string
	Error     string
	CSRFToken string
}

// Required reports whether field must be filled in.
func (v FormView) Required(field string) bool {
	return slices.Contains(v.Entity.Required, field)
}

// ListView is the template data of a list page and its table partial.
type ListView struct {
	*ListResult
	BaseURL        string
	SearchDebounce int64
}

func newListView(res *ListResult, debounce time.Duration) ListView {
	return ListView{
		ListResult:     res,
		BaseURL:        "/resources/" + res.Entity.Name,
		SearchDebounce: debounce.Milliseconds(),
	}
}

// query encodes the list state, overriding page when page > 0.
func (v ListView) query(s listing.PageState, page int) url.Values {
	q := url.Values{}
	if s.Search != "" {
		q.Set("search", s.Search)
	}
	if s.SortKey != "" {
		q.Set("sort", pkg.SortParam(s.SortKey, s.SortDirection))
	}
	for k, val := range s.Filters {
		q.Set(k, val)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	q.Set("page_size", strconv.Itoa(s.PageSize))
	return q
}

// PageURL links to page n with the current search, filters and sort.
func (v ListView) PageURL(n int) string {
	return v.BaseURL + "?" + v.query(v.State, n).Encode()
}

// SortURL links to the list sorted by key. Sorting the current key again
// flips the direction. The page is reset to 1.
func (v ListView) SortURL(key string) string {
	s := v.State
	dir := listing.Asc
	if s.SortKey == key && s.SortDirection == listing.Asc {
		dir = listing.Desc
	}
	s.SortKey, s.SortDirection = key, dir
	return v.BaseURL + "?" + v.query(s, 1).Encode()
}

// SortIndicator marks the sorted column.
func (v ListView) SortIndicator(key string) string {
	if v.State.SortKey != key {
		return ""
	}
	if v.State.SortDirection == listing.Desc {
		return "▼"
	}
	return "▲"
}

// ExportURL downloads the rows matching the current search and filters.
func (v ListView) ExportURL() string {
	return v.BaseURL + "/export?" + v.query(v.State, 0).Encode()
}

// FilterValue returns the current value of a filter.
func (v ListView) FilterValue(key string) string {
	return v.State.Filters[key]
}

// Pages returns up to five page numbers around the current page.
func (v ListView) Pages() []int {
	return v.Pagination.Pages
}

// BulkActions lists the bulk actions the caller may run on this entity.
func (v ListView) BulkActions() []BulkAction {
	var out []BulkAction
	if v.Permission.Update && v.Entity.HasToggle() {
		out = append(out, BulkActivate, BulkDeactivate, BulkToggle)
	}
	if v.Permission.Delete {
		out = append(out, BulkDelete)
	}
	return out
}

// BulkURL is the target of the bulk action form.
func (v ListView) BulkURL() string {
	return v.BaseURL + "/bulk"
}

// ColumnChoice is one entry of the column chooser.
type ColumnChoice struct {
	Key    string
	Label  string
	Hidden bool
}

// ColumnChoices lists every column the caller may see, marking the hidden
// ones.
func (v ListView) ColumnChoices() []ColumnChoice {
	cols := listing.GateColumns(v.Entity.Columns, v.Permission)
	out := make([]ColumnChoice, 0, len(cols))
	for _, c := range cols {
		visible := slices.ContainsFunc(v.Table.Columns, func(t listing.ColumnConfig) bool {
			return t.Key == c.Key
		})
		out = append(out, ColumnChoice{Key: c.Key, Label: c.Label, Hidden: !visible})
	}
	return out
}
