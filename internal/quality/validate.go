// Package quality scores an extraction result.
package quality

import (
	"fmt"
	"time"

	"finreports/internal"
	"finreports/internal/table"
)

// runChecks is swapped in tests to exercise the failure path.
var runChecks = Check

const (
	HighTotalThreshold = 10_000_000.0
	LowTotalThreshold  = 1_000.0
	MinYear            = 2000
)

// Validate attaches warnings and a quality tier to r and returns it. It never
// fails: a failed extraction, or a panic while checking, yields tier error
// with the failure text as the only warning.
func Validate(r internal.ExtractionResult, now time.Time) (out internal.ExtractionResult) {
	out = r
	if !r.Succeeded {
		msg := "extraction failed"
		if r.ErrorMessage != nil && *r.ErrorMessage != "" {
			msg = *r.ErrorMessage
		}
		out.Warnings = []string{msg}
		out.QualityTier = internal.QualityError
		return out
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = r
			out.Warnings = []string{fmt.Sprintf("validation failed: %v", rec)}
			out.QualityTier = internal.QualityError
		}
	}()

	warnings := runChecks(r, now)
	out.Warnings = warnings
	out.QualityTier = TierFor(len(warnings))
	return out
}

// Check lists the warnings for a succeeded result, in a fixed order.
func Check(r internal.ExtractionResult, now time.Time) []string {
	warnings := []string{}

	switch {
	case r.TotalValue <= 0:
		warnings = append(warnings, "total is zero or negative")
	case r.TotalValue > HighTotalThreshold:
		warnings = append(warnings, "total is unusually high")
	case r.TotalValue < LowTotalThreshold:
		warnings = append(warnings, "total is unusually low")
	}

	if r.PeriodYear != nil {
		y := *r.PeriodYear
		switch {
		case y < MinYear || y > now.Year()+1:
			warnings = append(warnings, fmt.Sprintf("period year %d is out of range", y))
		case y > now.Year():
			warnings = append(warnings, fmt.Sprintf("period year %d is in the future", y))
		}
	}

	if r.PeriodMonth != nil && (*r.PeriodMonth < 1 || *r.PeriodMonth > 12) {
		warnings = append(warnings, fmt.Sprintf("period month %d is out of range", *r.PeriodMonth))
	}

	if emission, ok := parseStored(r.EmissionDate); ok {
		if due, ok := parseStored(r.DueDate); ok && due.Before(emission) {
			warnings = append(warnings, "due date precedes emission date")
		}
	}

	return warnings
}

func TierFor(warnings int) internal.QualityTier {
	switch {
	case warnings == 0:
		return internal.QualityGood
	case warnings <= 2:
		return internal.QualityWarning
	default:
		return internal.QualityPoor
	}
}

func parseStored(v *string) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	if ts, err := time.Parse(table.CanonicalDateLayout, *v); err == nil {
		return ts, true
	}
	return table.ParseDate(*v)
}
