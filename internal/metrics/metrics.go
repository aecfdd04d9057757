// Package metrics reduces extraction results to dashboard summaries.
package metrics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"finreports/internal"
)

// RecordRef points at the record that produced an extreme value.
type RecordRef struct {
	Value  float64 `json:"value"`
	Period string  `json:"period"`
	Source string  `json:"source,omitempty"`
}

type Summary struct {
	TotalSum      float64                      `json:"total_sum"`
	AverageValue  float64                      `json:"average_value"`
	RecordCount   int                          `json:"record_count"`
	MaxRecord     RecordRef                    `json:"max_record"`
	MinRecord     RecordRef                    `json:"min_record"`
	QualityCounts map[internal.QualityTier]int `json:"quality_counts"`
}

type ChartPoint struct {
	PeriodLabel string  `json:"period_label"`
	TotalValue  float64 `json:"total_value"`
	SortKey     string  `json:"sort_key"`
}

// Compute summarises the eligible results: succeeded, with a positive total,
// and matching year and month when those are given. Quality counts cover
// every result regardless of eligibility.
func Compute(results []internal.ExtractionResult, year, month *int) Summary {
	s := Summary{QualityCounts: QualityCounts(results)}

	sum := decimal.Zero
	for _, r := range results {
		if !eligible(r, year, month) {
			continue
		}
		ref := RecordRef{Value: r.TotalValue, Period: PeriodLabel(r.PeriodMonth, r.PeriodYear), Source: r.SourceName}
		if s.RecordCount == 0 || r.TotalValue > s.MaxRecord.Value {
			s.MaxRecord = ref
		}
		if s.RecordCount == 0 || r.TotalValue < s.MinRecord.Value {
			s.MinRecord = ref
		}
		sum = sum.Add(decimal.NewFromFloat(r.TotalValue))
		s.RecordCount++
	}
	if s.RecordCount == 0 {
		return s
	}

	s.TotalSum = sum.InexactFloat64()
	s.AverageValue = sum.Div(decimal.NewFromInt(int64(s.RecordCount))).InexactFloat64()
	return s
}

// ChartSeries returns one point per eligible result that has both month and
// year, in ascending chronological order. Points sharing a period are kept
// separate, in input order.
func ChartSeries(results []internal.ExtractionResult, year, month *int) []ChartPoint {
	points := []ChartPoint{}
	for _, r := range results {
		if !eligible(r, year, month) || r.PeriodMonth == nil || r.PeriodYear == nil {
			continue
		}
		points = append(points, ChartPoint{
			PeriodLabel: PeriodLabel(r.PeriodMonth, r.PeriodYear),
			TotalValue:  r.TotalValue,
			SortKey:     fmt.Sprintf("%04d%02d", *r.PeriodYear, *r.PeriodMonth),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].SortKey < points[j].SortKey })
	return points
}

// QualityCounts tallies results per tier. Every tier is present.
func QualityCounts(results []internal.ExtractionResult) map[internal.QualityTier]int {
	counts := make(map[internal.QualityTier]int, len(internal.QualityTiers))
	for _, tier := range internal.QualityTiers {
		counts[tier] = 0
	}
	for _, r := range results {
		if r.QualityTier == "" {
			continue
		}
		counts[r.QualityTier]++
	}
	return counts
}

// PeriodLabel renders "MM/YYYY", "YYYY" without a month, or "" without a year.
func PeriodLabel(month, year *int) string {
	switch {
	case year == nil:
		return ""
	case month == nil:
		return fmt.Sprintf("%04d", *year)
	default:
		return fmt.Sprintf("%02d/%04d", *month, *year)
	}
}

func eligible(r internal.ExtractionResult, year, month *int) bool {
	if !r.Succeeded || r.TotalValue <= 0 {
		return false
	}
	if year != nil && (r.PeriodYear == nil || *r.PeriodYear != *year) {
		return false
	}
	if month != nil && (r.PeriodMonth == nil || *r.PeriodMonth != *month) {
		return false
	}
	return true
}
