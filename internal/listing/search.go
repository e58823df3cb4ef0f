package listing

import "strings"

// Search keeps rows where any of fields contains term, case-insensitively.
// An empty term returns rows unchanged. When fields is empty every value of
// the row is searched. Relative order is preserved.
func Search(rows []Row, term string, fields []string) []Row {
	term = strings.TrimSpace(term)
	if term == "" {
		return rows
	}
	needle := strings.ToLower(term)

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if rowContains(row, needle, fields) {
			out = append(out, row)
		}
	}
	return out
}

func rowContains(row Row, needle string, fields []string) bool {
	if len(fields) == 0 {
		for _, v := range row {
			if v != nil && strings.Contains(strings.ToLower(stringify(v)), needle) {
				return true
			}
		}
		return false
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(row.Text(f)), needle) {
			return true
		}
	}
	return false
}
