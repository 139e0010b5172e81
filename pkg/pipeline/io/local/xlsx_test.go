package local_test

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shpitdev/company-enricher/pkg/pipeline/io/local"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, cells map[string]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	sheet := f.GetSheetName(0)
	for cell, v := range cells {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestReadNamesXLSX(t *testing.T) {
	t.Run("skips non-string and empty cells", func(t *testing.T) {
		b := workbookBytes(t, map[string]any{
			"A1": "Acme",
			"A2": 42,
			"A3": "  ",
			"A4": true,
			"A6": "Zen",
			"B7": "not first column",
		})
		got, err := local.ReadNamesXLSX(bytes.NewReader(b), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"Acme", "  ", "Zen"}
		if !slices.Equal(got, want) {
			t.Fatalf("unexpected names: %#v", got)
		}
	})

	t.Run("skip header", func(t *testing.T) {
		b := workbookBytes(t, map[string]any{
			"A1": "Company",
			"A2": "Acme",
		})
		got, err := local.ReadNamesXLSX(bytes.NewReader(b), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(got, []string{"Acme"}) {
			t.Fatalf("unexpected names: %#v", got)
		}
	})

	t.Run("not a workbook", func(t *testing.T) {
		if _, err := local.ReadNamesXLSX(bytes.NewReader([]byte("name\nAcme\n")), false); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	header := []string{"Company name", "Status"}
	rows := [][]string{{"Acme", "done"}, {"Zen", "error"}}
	if err := local.WriteXLSX(&buf, "Enriched Company Data", header, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open written workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if got := f.GetSheetList(); !slices.Equal(got, []string{"Enriched Company Data"}) {
		t.Fatalf("unexpected sheets: %#v", got)
	}
	got, err := f.GetRows("Enriched Company Data")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(got))
	}
	if !slices.Equal(got[0], header) || !slices.Equal(got[2], rows[1]) {
		t.Fatalf("unexpected rows: %#v", got)
	}
}

func TestSheetFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"out.xlsx", "out.csv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			out := local.SheetFile{Path: path, Sheet: "Enriched Company Data", Header: []string{"Company name"}}
			if err := out.Store(ctx, [][]string{{"Acme"}, {"Zen"}}); err != nil {
				t.Fatalf("store: %v", err)
			}

			got, err := local.NameFile{Path: path, SkipHeader: true}.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !slices.Equal(got, []string{"Acme", "Zen"}) {
				t.Fatalf("unexpected names: %#v", got)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		in      string
		want    local.Format
		wantErr bool
	}{
		{in: "companies.xlsx", want: local.FormatXLSX},
		{in: "COMPANIES.XLSX", want: local.FormatXLSX},
		{in: "companies.csv", want: local.FormatCSV},
		{in: "companies.xls", wantErr: true},
		{in: "companies", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := local.FormatFromPath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("format=%q want=%q", got, tt.want)
			}
		})
	}
}
