package listing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Filter key suffixes. A bare key is an exact match.
const (
	SuffixLike = "__like"
	SuffixFrom = "__from"
	SuffixTo   = "__to"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ValidationError reports a filter value rejected before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Filter keeps rows matching every non-empty filter (logical AND).
// Keys ending in __like match a case-insensitive substring, keys ending in
// __from / __to bound an inclusive date range, other keys match exactly.
// Rows lacking the filtered field are excluded.
func Filter(rows []Row, filters map[string]string) []Row {
	preds := compileFilters(filters)
	if len(preds) == 0 {
		return rows
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, p := range preds {
			if !p(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// ValidateFilters rejects malformed date bounds and ranges whose start is
// after their end. When either bound is date-only the range is compared by
// calendar day, the way Filter applies it.
func ValidateFilters(filters map[string]string) error {
	type bounds struct {
		from, to       time.Time
		hasFrom, hasTo bool
		anyDateOnly    bool
	}
	ranges := make(map[string]*bounds)

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(filters[key])
		if value == "" {
			continue
		}
		field, suffix := splitFilterKey(key)
		if suffix != SuffixFrom && suffix != SuffixTo {
			continue
		}
		t, dateOnly, ok := parseDate(value)
		if !ok {
			return &ValidationError{Field: key, Message: fmt.Sprintf("invalid date %q", value)}
		}
		b := ranges[field]
		if b == nil {
			b = &bounds{}
			ranges[field] = b
		}
		b.anyDateOnly = b.anyDateOnly || dateOnly
		if suffix == SuffixFrom {
			b.from, b.hasFrom = t, true
		} else {
			b.to, b.hasTo = t, true
		}
	}

	fields := make([]string, 0, len(ranges))
	for f := range ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		b := ranges[f]
		if !b.hasFrom || !b.hasTo {
			continue
		}
		inverted := b.from.After(b.to)
		if b.anyDateOnly {
			inverted = b.from.Format(time.DateOnly) > b.to.Format(time.DateOnly)
		}
		if inverted {
			return &ValidationError{Field: f, Message: "start date must not be after end date"}
		}
	}
	return nil
}

type predicate func(Row) bool

func compileFilters(filters map[string]string) []predicate {
	preds := make([]predicate, 0, len(filters))
	for key, raw := range filters {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		field, suffix := splitFilterKey(key)
		switch suffix {
		case SuffixLike:
			needle := strings.ToLower(value)
			preds = append(preds, func(r Row) bool {
				v, ok := r[field]
				return ok && v != nil && strings.Contains(strings.ToLower(stringify(v)), needle)
			})
		case SuffixFrom, SuffixTo:
			bound, dateOnly, ok := parseDate(value)
			if !ok {
				// Unvalidated garbage matches nothing rather than everything.
				preds = append(preds, func(Row) bool { return false })
				continue
			}
			lower := suffix == SuffixFrom
			preds = append(preds, func(r Row) bool {
				return withinBound(r, field, bound, dateOnly, lower)
			})
		default:
			preds = append(preds, func(r Row) bool {
				v, ok := r[field]
				return ok && v != nil && equalsFilter(v, value)
			})
		}
	}
	return preds
}

func splitFilterKey(key string) (field, suffix string) {
	for _, s := range []string{SuffixLike, SuffixFrom, SuffixTo} {
		if strings.HasSuffix(key, s) {
			return strings.TrimSuffix(key, s), s
		}
	}
	return key, ""
}

// equalsFilter compares a row value with a filter string. Booleans accept the
// same loose spellings the backend uses.
func equalsFilter(v any, want string) bool {
	if b, ok := v.(bool); ok {
		wb, ok := ParseBool(want)
		return ok && wb == b
	}
	if n, ok := number(v); ok {
		if w, err := strconv.ParseFloat(want, 64); err == nil {
			return n == w
		}
	}
	return stringify(v) == want
}

func withinBound(r Row, field string, bound time.Time, dateOnly, lower bool) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return false
	}
	t, _, ok := parseDate(stringify(v))
	if !ok {
		return false
	}
	if dateOnly {
		day := t.Format("2006-01-02")
		b := bound.Format("2006-01-02")
		if lower {
			return day >= b
		}
		return day <= b
	}
	if lower {
		return !t.Before(bound)
	}
	return !t.After(bound)
}

func parseDate(s string) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layout == "2006-01-02" || layout == "02/01/2006", true
		}
	}
	return time.Time{}, false, false
}
