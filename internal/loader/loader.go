// Package loader reads spreadsheet-like documents into tables.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"finreports/internal/table"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrEmptyTable        = errors.New("document has no table")
)

// workbook is one opened document. Formats without sheets expose a single
// sheet named "".
type workbook interface {
	Sheets() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

type opener func(content []byte) (workbook, error)

// Filled in init: openEML opens attachments through this table.
var openers map[string]opener

func init() {
	openers = map[string]opener{
		".xlsx": openXLSX,
		".xlsm": openXLSX,
		".xltx": openXLSX,
		".csv":  openCSV,
		".txt":  openCSV,
		".html": openHTML,
		".htm":  openHTML,
		".pdf":  openPDF,
		".eml":  openEML,
	}
}

// Supported reports whether the file extension has a reader.
func Supported(name string) bool {
	_, ok := openers[strings.ToLower(filepath.Ext(name))]
	return ok
}

func SupportedExtensions() []string {
	out := make([]string, 0, len(openers))
	for ext := range openers {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Load reads the named sheet of the file at path ("" selects the first) and
// returns the table together with the document's sheet list.
func Load(path, sheet string) (table.Table, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return table.Table{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadBytes(filepath.Base(path), content, sheet)
}

func ListSheets(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ListSheetsBytes(filepath.Base(path), content)
}

// LoadBytes is Load for in-memory content; name supplies the extension.
func LoadBytes(name string, content []byte, sheet string) (table.Table, []string, error) {
	wb, err := open(name, content)
	if err != nil {
		return table.Table{}, nil, err
	}
	defer wb.Close()

	sheets := wb.Sheets()
	resolved, err := resolveSheet(sheets, sheet)
	if err != nil {
		return table.Table{}, sheets, err
	}
	rows, err := wb.Rows(resolved)
	if err != nil {
		return table.Table{}, sheets, fmt.Errorf("read sheet %q of %s: %w", resolved, name, err)
	}

	tableName := resolved
	if tableName == "" {
		tableName = name
	}
	t := table.FromRows(tableName, rows)
	if len(t.Columns) == 0 {
		return table.Table{}, sheets, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	return t, sheets, nil
}

func ListSheetsBytes(name string, content []byte) ([]string, error) {
	wb, err := open(name, content)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Sheets(), nil
}

func open(name string, content []byte) (workbook, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := openers[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	wb, err := fn(content)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return wb, nil
}

func resolveSheet(sheets []string, sheet string) (string, error) {
	if len(sheets) == 0 {
		return "", ErrEmptyTable
	}
	if sheet == "" {
		return sheets[0], nil
	}
	if !slices.Contains(sheets, sheet) {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	return sheet, nil
}
