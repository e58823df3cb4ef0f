package listing

import (
	"encoding/json"
	"errors"
	"testing"
)

func filterRows() []Row {
	return []Row{
		{"id": "1", "status": "active", "name": "Anna", "created_at": "2024-01-05T10:00:00Z", "active": true, "rank": json.Number("3")},
		{"id": "2", "status": "inactive", "name": "Bob", "created_at": "2024-01-10", "active": "false", "rank": json.Number("5")},
		{"id": "3", "status": "active", "name": "Annette", "created_at": "2024-02-01 09:30:00", "active": "true"},
		{"id": "4", "name": "Dora"},
	}
}

func TestFilter_ExactMatch(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"status": "active"})
	equalIDs(t, got, "1", "3")
}

func TestFilter_LikeMatch(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"name__like": "ANN"})
	equalIDs(t, got, "1", "3")
}

func TestFilter_BooleanLooseSpellings(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"active": "true"})
	equalIDs(t, got, "1", "3")
}

func TestFilter_NumberMatch(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"rank": "5"})
	equalIDs(t, got, "2")
	got = Filter(filterRows(), map[string]string{"rank": "5abc"})
	equalIDs(t, got)
}

func TestFilter_DateRangeInclusive(t *testing.T) {
	got := Filter(filterRows(), map[string]string{
		"created_at__from": "2024-01-05",
		"created_at__to":   "2024-01-10",
	})
	equalIDs(t, got, "1", "2")
}

func TestFilter_ConjunctionAndMissingField(t *testing.T) {
	got := Filter(filterRows(), map[string]string{
		"status":     "active",
		"name__like": "anne",
	})
	equalIDs(t, got, "3")

	// Row 4 has no status and is excluded by any status filter.
	got = Filter(filterRows(), map[string]string{"status__like": "a"})
	equalIDs(t, got, "1", "2", "3")
}

func TestFilter_EmptyValuesIgnored(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"status": "", "name__like": "  "})
	equalIDs(t, got, "1", "2", "3", "4")
}

func TestFilter_InvalidDateMatchesNothing(t *testing.T) {
	got := Filter(filterRows(), map[string]string{"created_at__from": "yesterday"})
	equalIDs(t, got)
}

func TestValidateFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]string
		wantErr bool
		field   string
	}{
		{"empty", nil, false, ""},
		{"no dates", map[string]string{"status": "x"}, false, ""},
		{"valid range", map[string]string{"d__from": "2024-01-01", "d__to": "2024-01-31"}, false, ""},
		{"same day", map[string]string{"d__from": "2024-01-01", "d__to": "2024-01-01"}, false, ""},
		{"only lower", map[string]string{"d__from": "2024-01-01"}, false, ""},
		{"reversed", map[string]string{"d__from": "2024-03-01", "d__to": "2024-01-31"}, true, "d"},
		{"malformed", map[string]string{"d__to": "31-31-2024"}, true, "d__to"},
		{"timestamp start on date-only end day", map[string]string{"d__from": "2024-01-05T10:00:00Z", "d__to": "2024-01-05"}, false, ""},
		{"date-only start on timestamp end day", map[string]string{"d__from": "2024-01-05", "d__to": "2024-01-05T09:00:00Z"}, false, ""},
		{"mixed bounds a day apart reversed", map[string]string{"d__from": "2024-01-06T00:00:00Z", "d__to": "2024-01-05"}, true, "d"},
		{"timestamps reversed within a day", map[string]string{"d__from": "2024-01-05T10:00:00Z", "d__to": "2024-01-05T09:00:00Z"}, true, "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilters(tt.filters)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err == nil {
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestValidateFilters_AgreesWithFilterOnMixedBounds(t *testing.T) {
	filters := map[string]string{
		"created_at__from": "2024-01-05T10:00:00Z",
		"created_at__to":   "2024-01-05",
	}
	rows := []Row{
		{"id": 1, "created_at": "2024-01-05T12:00:00Z"},
		{"id": 2, "created_at": "2024-01-05T08:00:00Z"},
		{"id": 3, "created_at": "2024-01-06T12:00:00Z"},
	}

	if err := ValidateFilters(filters); err != nil {
		t.Fatalf("ValidateFilters() error = %v", err)
	}
	got := Filter(rows, filters)
	if len(got) != 1 || got[0].ID() != "1" {
		t.Errorf("Filter() = %v, want only row 1", got)
	}
}
