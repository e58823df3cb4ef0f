package pkg

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	mapValidator     *validator.Validate
	mapValidatorOnce sync.Once
)

func getMapValidator() *validator.Validate {
	mapValidatorOnce.Do(func() {
		mapValidator = validator.New()
	})
	return mapValidator
}

// RequireFields checks that every field is present and non-blank in data.
// It returns a field -> rule map that is empty when data is valid.
func RequireFields(data map[string]any, fields []string) map[string]string {
	if len(fields) == 0 {
		return map[string]string{}
	}

	trimmed := make(map[string]any, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		trimmed[k] = v
	}
	rules := make(map[string]any, len(fields))
	for _, f := range fields {
		rules[f] = "required"
	}

	errs := make(map[string]string)
	for field, err := range getMapValidator().ValidateMap(trimmed, rules) {
		var ve validator.ValidationErrors
		if e, ok := err.(validator.ValidationErrors); ok {
			ve = e
		}
		if len(ve) > 0 {
			errs[field] = ve[0].Tag()
		} else {
			errs[field] = "required"
		}
	}
	return errs
}

// FieldList returns the keys of errs in sorted order, for messages.
func FieldList(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
