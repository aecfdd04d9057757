package loader

import (
	"bytes"
	"regexp"
	"time"

	"github.com/xuri/excelize/v2"

	"finreports/internal/util"
)

// Matches the rendering of date number formats: 01-15-24, 15/01/2024, 15-Jan-24.
var reFormattedDate = regexp.MustCompile(`^\d{1,4}[-/.](?:\d{1,2}|[A-Za-z]{3,})[-/.]\d{2,4}`)

type xlsxBook struct {
	f *excelize.File
}

func openXLSX(content []byte) (workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &xlsxBook{f: f}, nil
}

func (b *xlsxBook) Sheets() []string { return b.f.GetSheetList() }

func (b *xlsxBook) Close() error { return b.f.Close() }

// Rows combines the formatted and raw views of the sheet: numbers keep their
// raw value so thousands separators and currency formats do not leak into the
// table, and date-formatted serials become ISO dates.
func (b *xlsxBook) Rows(sheet string) ([][]string, error) {
	formatted, err := b.f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := b.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	out := make([][]string, len(formatted))
	for r, row := range formatted {
		cells := make([]string, len(row))
		for c, shown := range row {
			cells[c] = combineCell(shown, rawCell(raw, r, c))
		}
		out[r] = cells
	}
	return out, nil
}

func rawCell(raw [][]string, r, c int) string {
	if r >= len(raw) || c >= len(raw[r]) {
		return ""
	}
	return raw[r][c]
}

func combineCell(shown, raw string) string {
	v, numeric := util.ParseNumber(raw)
	if !numeric || shown == raw {
		return shown
	}
	if reFormattedDate.MatchString(shown) {
		ts, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return shown
		}
		return formatSerialDate(ts)
	}
	return raw
}

func formatSerialDate(ts time.Time) string {
	ts = ts.Round(time.Second)
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
		return ts.Format(time.DateOnly)
	}
	return ts.Format(time.DateTime)
}
