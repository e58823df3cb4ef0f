// Package listing implements the list-data pipeline shared by every list page:
// search, filter, sort and paginate a fetched collection, then gate and render
// it as a table.
package listing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Row is one backend entity as decoded from JSON. Numbers are kept as
// json.Number so that identifiers and amounts survive without float rounding.
type Row map[string]any

// ID returns the row identity as a string. Numeric and string ids are both
// accepted; a missing id yields "".
func (r Row) ID() string {
	v, ok := r["id"]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Text returns the string form of the value at key, or "" when absent.
func (r Row) Text(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Bool reports the boolean value at key. Backend payloads use real booleans,
// "true"/"false" strings and 1/0 interchangeably.
func (r Row) Bool(key string) (value bool, ok bool) {
	v, exists := r[key]
	if !exists || v == nil {
		return false, false
	}
	return ParseBool(v)
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ParseBool interprets the loosely typed flags found in backend payloads and
// persisted permission blobs.
func ParseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no", "":
			return false, true
		}
		return false, false
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case int64:
		return b != 0, true
	}
	return false, false
}

// stringify renders a JSON value the way it is shown in a table cell.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	case map[string]any:
		// Nested objects (pms_region, pms_zone) display by name.
		if name, ok := t["name"]; ok {
			return stringify(name)
		}
	}
	return fmt.Sprint(v)
}

// number extracts a float from numeric JSON values. Strings are not numbers.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
