package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"finreports/internal"
	"finreports/internal/table"
)

// FilteredSheetName is the sheet ExportTableXLSX writes to.
const FilteredSheetName = "Filtered"

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ExportTableCSV writes t as UTF-8 CSV with a BOM so spreadsheet tools pick
// the right encoding.
func ExportTableCSV(t table.Table, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Headers()); err != nil {
		return err
	}
	for r := 0; r < t.NumRows(); r++ {
		if err := w.Write(t.Row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ExportTableXLSX writes t to a single-sheet workbook. Numbers and timestamps
// keep their cell types.
func ExportTableXLSX(t table.Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), FilteredSheetName); err != nil {
		return err
	}

	for i, h := range t.Headers() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(FilteredSheetName, cell, h)
	}

	for c, col := range t.Columns {
		for r, v := range col.Cells {
			if !v.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(FilteredSheetName, cell, cellValue(col.Kind, v))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func cellValue(kind table.Kind, c table.Cell) any {
	switch kind {
	case table.KindNumber:
		return c.Num
	case table.KindTimestamp:
		return c.Time
	default:
		return c.Text
	}
}

// ExportResultsXLSX writes one row per extraction result.
func ExportResultsXLSX(results []internal.ExtractionResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"source_name", "sheet", "total_value", "emission_date", "due_date",
		"period_month", "period_year", "succeeded", "error_message",
		"quality_tier", "warnings", "processed_at",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range results {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.SourceName)
		set(2, row.SheetIdentifier)
		set(3, row.TotalValue)
		set(4, derefString(row.EmissionDate))
		set(5, derefString(row.DueDate))
		set(6, derefInt(row.PeriodMonth))
		set(7, derefInt(row.PeriodYear))
		set(8, row.Succeeded)
		set(9, derefString(row.ErrorMessage))
		set(10, string(row.QualityTier))
		set(11, strings.Join(row.Warnings, "; "))
		if !row.ProcessedAt.IsZero() {
			set(12, row.ProcessedAt.UTC().Format("2006-01-02 15:04:05"))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
