package pipeline

import (
	"time"

	"finreports/internal"
	"finreports/internal/extract"
	"finreports/internal/loader"
	"finreports/internal/quality"
	"finreports/internal/table"
	"finreports/internal/util"
)

// ProcessDocument loads one sheet of the file at path and mines it. sourceName
// is the user-facing file name the reporting period is read from. Load
// failures come back as a failed result, never as an error.
func ProcessDocument(path, sourceName, sheet string, now time.Time) internal.ExtractionResult {
	t, sheets, err := loader.Load(path, sheet)
	if err != nil {
		return failedResult(sourceName, sheet, err, now)
	}
	return ProcessTable(t, sourceName, resolvedSheet(sheet, sheets), now)
}

// ProcessTable runs date coercion, extraction and validation on a loaded table.
func ProcessTable(t table.Table, sourceName, sheet string, now time.Time) internal.ExtractionResult {
	t = table.CoerceDates(t)
	emission, due := extract.Dates(t)
	month, year := extract.PeriodFromFilename(sourceName, now)

	r := internal.ExtractionResult{
		SourceName:      sourceName,
		SheetIdentifier: sheet,
		TotalValue:      extract.Total(t),
		EmissionDate:    emission,
		DueDate:         due,
		PeriodMonth:     month,
		PeriodYear:      util.IntPtr(year),
		Succeeded:       true,
		ProcessedAt:     now,
	}
	return quality.Validate(r, now)
}

func failedResult(sourceName, sheet string, err error, now time.Time) internal.ExtractionResult {
	r := internal.ExtractionResult{
		SourceName:      sourceName,
		SheetIdentifier: sheet,
		ErrorMessage:    util.StringPtr(err.Error()),
		ProcessedAt:     now,
	}
	return quality.Validate(r, now)
}

func resolvedSheet(requested string, sheets []string) string {
	if requested == "" && len(sheets) > 0 {
		return sheets[0]
	}
	return requested
}
