package local

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadNamesXLSX returns the first-column values of the first worksheet.
//
// Only string-typed cells are returned; numbers, booleans, dates and errors are
// skipped, as are empty cells.
func ReadNamesXLSX(r io.Reader, skipHeader bool) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var names []string
	for i, row := range rows {
		if i == 0 && skipHeader {
			continue
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		typ, err := f.GetCellType(sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("cell %s type: %w", cell, err)
		}
		if !isStringCell(typ) {
			continue
		}
		names = append(names, row[0])
	}
	return names, nil
}

func isStringCell(t excelize.CellType) bool {
	switch t {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return true
	default:
		return false
	}
}

// WriteXLSX writes a single-sheet workbook with a header row followed by rows.
func WriteXLSX(w io.Writer, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	writeRow := func(rowNum int, vals []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(i+2, r); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}
