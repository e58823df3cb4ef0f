package listing

import (
	"slices"
	"strings"
)

// Capability names a permission flag an action or column depends on.
type Capability string

const (
	CapNone   Capability = ""
	CapCreate Capability = "create"
	CapUpdate Capability = "update"
	CapDelete Capability = "delete"
	CapShow   Capability = "show"
)

// Permissions answers whether a capability is granted.
type Permissions interface {
	Allows(Capability) bool
}

// ColumnConfig describes how one field of a row is presented.
type ColumnConfig struct {
	Key      string     `json:"key" koanf:"key"`
	Label    string     `json:"label" koanf:"label"`
	Sortable bool       `json:"sortable" koanf:"sortable"`
	Requires Capability `json:"requires,omitempty" koanf:"requires"`
}

// Action is a per-row control such as edit, delete or toggle.
type Action struct {
	Name     string
	Label    string
	Method   string
	Path     string // may contain {id}
	Confirm  string
	Requires Capability
}

// ActionLink is an Action bound to one row.
type ActionLink struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Method  string `json:"method"`
	URL     string `json:"url"`
	Confirm string `json:"confirm,omitempty"`
}

// Cell is the rendered value of one column in one row.
type Cell struct {
	Key   string `json:"key"`
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// CellFunc maps a row and a column to a cell.
type CellFunc func(row Row, col ColumnConfig) Cell

// Layout is a saved column arrangement: hidden keys and preferred order.
type Layout struct {
	Hidden []string
	Order  []string
}

// TableSpec is everything BuildTable needs besides the data and permissions.
type TableSpec struct {
	Columns  []ColumnConfig
	Actions  []Action
	Cell     CellFunc
	Layout   Layout
	Disabled func(Row) bool
}

// TableRow is one rendered row.
type TableRow struct {
	ID       string       `json:"id"`
	Cells    []Cell       `json:"cells"`
	Actions  []ActionLink `json:"actions"`
	Disabled bool         `json:"disabled,omitempty"`
}

// Table is the render output handed to JSON or HTML views.
type Table struct {
	Columns   []ColumnConfig `json:"columns"`
	Rows      []TableRow     `json:"rows"`
	CanCreate bool           `json:"can_create"`
}

// Gate drops actions whose capability is not granted. Denied actions are
// absent, not disabled.
func Gate(actions []Action, perm Permissions) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if allowed(perm, a.Requires) {
			out = append(out, a)
		}
	}
	return out
}

// GateColumns drops columns whose capability is not granted.
func GateColumns(cols []ColumnConfig, perm Permissions) []ColumnConfig {
	out := make([]ColumnConfig, 0, len(cols))
	for _, c := range cols {
		if allowed(perm, c.Requires) {
			out = append(out, c)
		}
	}
	return out
}

// ApplyLayout hides and reorders columns. Keys missing from Order keep
// their configured relative position after the ordered ones.
func ApplyLayout(cols []ColumnConfig, layout Layout) []ColumnConfig {
	visible := make([]ColumnConfig, 0, len(cols))
	for _, c := range cols {
		if !slices.Contains(layout.Hidden, c.Key) {
			visible = append(visible, c)
		}
	}
	if len(layout.Order) == 0 {
		return visible
	}
	pos := func(key string) int {
		if i := slices.Index(layout.Order, key); i >= 0 {
			return i
		}
		return len(layout.Order)
	}
	slices.SortStableFunc(visible, func(a, b ColumnConfig) int {
		return pos(a.Key) - pos(b.Key)
	})
	return visible
}

// DefaultCell renders the string form of the value at col.Key.
func DefaultCell(row Row, col ColumnConfig) Cell {
	return Cell{Key: col.Key, Text: row.Text(col.Key), Value: row[col.Key]}
}

// BuildTable renders page through spec, gating columns and actions by perm.
func BuildTable(page Page, spec TableSpec, perm Permissions) Table {
	cellFn := spec.Cell
	if cellFn == nil {
		cellFn = DefaultCell
	}
	cols := ApplyLayout(GateColumns(spec.Columns, perm), spec.Layout)
	actions := Gate(spec.Actions, perm)

	rows := make([]TableRow, 0, len(page.Rows))
	for _, r := range page.Rows {
		tr := TableRow{
			ID:      r.ID(),
			Cells:   make([]Cell, 0, len(cols)),
			Actions: make([]ActionLink, 0, len(actions)),
		}
		for _, c := range cols {
			tr.Cells = append(tr.Cells, cellFn(r, c))
		}
		if spec.Disabled != nil {
			tr.Disabled = spec.Disabled(r)
		}
		for _, a := range actions {
			// Disabled rows keep read-only actions only.
			if tr.Disabled && a.Requires != CapShow && a.Requires != CapNone {
				continue
			}
			tr.Actions = append(tr.Actions, ActionLink{
				Name:    a.Name,
				Label:   a.Label,
				Method:  a.Method,
				URL:     strings.ReplaceAll(a.Path, "{id}", tr.ID),
				Confirm: a.Confirm,
			})
		}
		rows = append(rows, tr)
	}

	return Table{
		Columns:   cols,
		Rows:      rows,
		CanCreate: allowed(perm, CapCreate),
	}
}

func allowed(perm Permissions, c Capability) bool {
	if c == CapNone {
		return true
	}
	return perm != nil && perm.Allows(c)
}
