package local

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadNamesCSV reads a CSV file and returns the values from its first column.
//
// Blank values are returned as-is; callers decide which rows are usable.
func ReadNamesCSV(r io.Reader, skipHeader bool) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var names []string
	for first := true; ; first = false {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if first && skipHeader {
			continue
		}
		if len(rec) == 0 {
			names = append(names, "")
			continue
		}
		names = append(names, rec[0])
	}
	return names, nil
}

// WriteCSV writes a header row followed by rows.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
