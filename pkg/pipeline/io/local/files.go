package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shpitdev/company-enricher/pkg/pipeline/core"
)

var (
	_ core.InputAdapter[string]    = NameFile{}
	_ core.OutputAdapter[[]string] = SheetFile{}
)

// Format is the on-disk table format, chosen by file extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath resolves the table format from a file name.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

// NameFile loads first-column names from a local .xlsx or .csv file.
type NameFile struct {
	Path       string
	SkipHeader bool
}

func (n NameFile) Load(_ context.Context) ([]string, error) {
	format, err := FormatFromPath(n.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(n.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	if format == FormatCSV {
		return ReadNamesCSV(f, n.SkipHeader)
	}
	return ReadNamesXLSX(f, n.SkipHeader)
}

// SheetFile stores rows into a local .xlsx or .csv file, replacing any existing file.
type SheetFile struct {
	Path   string
	Sheet  string
	Header []string
}

func (s SheetFile) Store(_ context.Context, rows [][]string) error {
	format, err := FormatFromPath(s.Path)
	if err != nil {
		return err
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if format == FormatCSV {
		err = WriteCSV(f, s.Header, rows)
	} else {
		err = WriteXLSX(f, s.Sheet, s.Header, rows)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
