package backend

import (
	"fmt"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

// DecodeCollection normalizes the collection envelopes the backend uses:
// a bare array, {"data": [...]} or {"<key>": [...]}.
func DecodeCollection(body any, key string) ([]listing.Row, error) {
	switch v := body.(type) {
	case []any:
		return toRows(v)
	case map[string]any:
		if arr, ok := v["data"].([]any); ok {
			return toRows(arr)
		}
		if key != "" {
			if arr, ok := v[key].([]any); ok {
				return toRows(arr)
			}
		}
		// {"data": {"<key>": [...]}} shows up on a few paginated endpoints.
		if inner, ok := v["data"].(map[string]any); ok && key != "" {
			if arr, ok := inner[key].([]any); ok {
				return toRows(arr)
			}
		}
	case nil:
		return []listing.Row{}, nil
	}
	return nil, shapeError("collection", key)
}

// DecodeObject normalizes single-object envelopes: a bare object,
// {"data": {...}} or {"<key>": {...}}.
func DecodeObject(body any, key string) (listing.Row, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, shapeError("object", key)
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return listing.Row(inner), nil
	}
	if key != "" {
		if inner, ok := obj[key].(map[string]any); ok {
			return listing.Row(inner), nil
		}
	}
	return listing.Row(obj), nil
}

func toRows(items []any) ([]listing.Row, error) {
	rows := make([]listing.Row, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, domain.NewAppError(domain.CodeUpstream,
				fmt.Sprintf("unexpected response shape: item %d is %T", i, item), nil)
		}
		rows = append(rows, listing.Row(obj))
	}
	return rows, nil
}

func shapeError(kind, key string) error {
	msg := "unexpected response shape: expected " + kind
	if key != "" {
		msg += " under " + `"data" or "` + key + `"`
	}
	return domain.NewAppError(domain.CodeUpstream, msg, nil)
}
