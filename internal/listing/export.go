package listing

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header of column labels followed by one record per row.
// Cells use the same string form the table renders.
func WriteCSV(w io.Writer, cols []ColumnConfig, rows []Row) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
		if header[i] == "" {
			header[i] = c.Key
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			record[i] = r.Text(c.Key)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
