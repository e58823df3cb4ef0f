// Package resource serves the configured back-office entities: list pages
// backed by the upstream collection endpoints, their row actions and the
// mutations those actions trigger.
package resource

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/simp-lee/backoffice/internal/config"
	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

// Entity is one configured back-office entity.
type Entity struct {
	config.EntityConfig
	rule *listing.RowRule
}

// Registry holds the configured entities in configuration order.
type Registry struct {
	byName map[string]*Entity
	order  []*Entity
}

// NewRegistry builds a registry from validated entity configs.
func NewRegistry(cfgs []config.EntityConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Entity, len(cfgs))}
	for _, cfg := range cfgs {
		if _, dup := r.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", cfg.Name)
		}
		rule, err := listing.CompileRowRule(cfg.DisabledWhen)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", cfg.Name, err)
		}
		e := &Entity{EntityConfig: cfg, rule: rule}
		r.byName[cfg.Name] = e
		r.order = append(r.order, e)
	}
	return r, nil
}

// Get returns the entity called name.
func (r *Registry) Get(name string) (*Entity, error) {
	if e, ok := r.byName[name]; ok {
		return e, nil
	}
	return nil, domain.NewAppError(domain.CodeNotFound, fmt.Sprintf("unknown resource %q", name), nil)
}

// All returns every entity in configuration order.
func (r *Registry) All() []*Entity {
	return slices.Clone(r.order)
}

// Tables maps each entity name, which doubles as its table storage key, to
// its column keys.
func (r *Registry) Tables() map[string][]string {
	out := make(map[string][]string, len(r.order))
	for _, e := range r.order {
		keys := make([]string, 0, len(e.Columns))
		for _, c := range e.Columns {
			keys = append(keys, c.Key)
		}
		out[e.Name] = keys
	}
	return out
}

// StorageKey is the column preference key of the entity table.
func (e *Entity) StorageKey() string {
	return e.Name
}

// ListSpec returns the search fields and sortable keys of the entity.
func (e *Entity) ListSpec() listing.Spec {
	spec := listing.Spec{SearchFields: e.SearchFields}
	for _, c := range e.Columns {
		if c.Sortable {
			spec.SortableKeys = append(spec.SortableKeys, c.Key)
		}
	}
	return spec
}

// Disabled reports whether row matches the entity's disabled_when rule.
func (e *Entity) Disabled(row listing.Row) bool {
	return e.rule.Match(row)
}

// HasToggle reports whether rows can be switched on and off.
func (e *Entity) HasToggle() bool {
	return e.StatusField != ""
}

// Actions returns the row actions of the entity's HTML list page.
func (e *Entity) Actions() []listing.Action {
	base := "/resources/" + e.Name + "/{id}"
	actions := []listing.Action{
		{Name: "show", Label: "View", Method: http.MethodGet, Path: base, Requires: listing.CapShow},
		{Name: "edit", Label: "Edit", Method: http.MethodGet, Path: base + "/edit", Requires: listing.CapUpdate},
	}
	if e.HasToggle() {
		actions = append(actions, listing.Action{
			Name: "toggle", Label: "Toggle", Method: http.MethodPatch, Path: base + "/toggle", Requires: listing.CapUpdate,
		})
	}
	return append(actions, listing.Action{
		Name: "delete", Label: "Delete", Method: http.MethodDelete, Path: base,
		Confirm: "Delete this " + e.Label + "?", Requires: listing.CapDelete,
	})
}

// TableSpec returns the table rendering spec for the given column layout.
func (e *Entity) TableSpec(layout listing.Layout) listing.TableSpec {
	return listing.TableSpec{
		Columns:  e.Columns,
		Actions:  e.Actions(),
		Cell:     e.cell,
		Layout:   layout,
		Disabled: e.Disabled,
	}
}

// cell renders the status column as Active/Inactive and everything else with
// the default string form.
func (e *Entity) cell(row listing.Row, col listing.ColumnConfig) listing.Cell {
	if col.Key == e.StatusField && e.StatusField != "" {
		on, ok := row.Bool(col.Key)
		if ok {
			text := "Inactive"
			if on {
				text = "Active"
			}
			return listing.Cell{Key: col.Key, Text: text, Value: on}
		}
	}
	return listing.DefaultCell(row, col)
}

// FormFields returns the fields of the generic create and edit forms: every
// column except id and the status column, plus required fields that are not
// columns.
func (e *Entity) FormFields() []string {
	fields := make([]string, 0, len(e.Columns)+len(e.Required))
	for _, c := range e.Columns {
		if c.Key == "id" || c.Key == e.StatusField || slices.Contains(fields, c.Key) {
			continue
		}
		fields = append(fields, c.Key)
	}
	for _, f := range e.Required {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// ItemURL returns the upstream path of one record.
func (e *Entity) ItemURL(id string) string {
	return strings.ReplaceAll(e.ItemPath, "{id}", url.PathEscape(id))
}

// toggleRequest returns the upstream method and path that switch a record's
// status. The item URL is PATCHed unless toggle_path or toggle_method say
// otherwise.
func (e *Entity) toggleRequest(id string) (string, string) {
	method := e.ToggleMethod
	if method == "" {
		method = http.MethodPatch
	}
	if e.TogglePath != "" {
		return method, strings.ReplaceAll(e.TogglePath, "{id}", url.PathEscape(id))
	}
	return method, e.ItemURL(id)
}

// payload wraps fields in the entity's payload key when one is configured,
// e.g. {"pms_site": {...}}.
func (e *Entity) payload(fields map[string]any) map[string]any {
	if e.PayloadKey == "" {
		return fields
	}
	return map[string]any{e.PayloadKey: fields}
}
