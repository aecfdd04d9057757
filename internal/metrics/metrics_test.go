package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreports/internal"
	"finreports/internal/util"
)

func result(total float64, month, year int, tier internal.QualityTier) internal.ExtractionResult {
	r := internal.ExtractionResult{TotalValue: total, Succeeded: true, QualityTier: tier}
	if month > 0 {
		r.PeriodMonth = util.IntPtr(month)
	}
	if year > 0 {
		r.PeriodYear = util.IntPtr(year)
	}
	return r
}

func TestComputeSkipsNonPositiveTotals(t *testing.T) {
	results := []internal.ExtractionResult{
		result(1000, 1, 2024, internal.QualityGood),
		result(0, 2, 2024, internal.QualityWarning),
		result(-5000, 3, 2024, internal.QualityWarning),
	}
	s := Compute(results, nil, nil)
	assert.Equal(t, 1, s.RecordCount)
	assert.Equal(t, 1000.0, s.TotalSum)
	assert.Equal(t, 1000.0, s.AverageValue)
	assert.Equal(t, "01/2024", s.MaxRecord.Period)
	assert.Equal(t, 1, s.QualityCounts[internal.QualityGood])
	assert.Equal(t, 2, s.QualityCounts[internal.QualityWarning])
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, nil, nil)
	assert.Zero(t, s.RecordCount)
	assert.Zero(t, s.TotalSum)
	assert.Zero(t, s.AverageValue)
	assert.Equal(t, RecordRef{}, s.MaxRecord)
	require.Len(t, s.QualityCounts, 4)
	for _, tier := range internal.QualityTiers {
		assert.Zero(t, s.QualityCounts[tier])
	}
}

func TestComputePeriodFilterAndExtremes(t *testing.T) {
	failed := result(9_999, 5, 2024, internal.QualityError)
	failed.Succeeded = false
	results := []internal.ExtractionResult{
		result(2500, 5, 2024, internal.QualityGood),
		result(1500, 5, 2024, internal.QualityGood),
		result(7000, 6, 2024, internal.QualityGood),
		result(4000, 0, 2024, internal.QualityWarning),
		failed,
	}

	s := Compute(results, util.IntPtr(2024), util.IntPtr(5))
	assert.Equal(t, 2, s.RecordCount)
	assert.Equal(t, 4000.0, s.TotalSum)
	assert.Equal(t, 2000.0, s.AverageValue)
	assert.Equal(t, RecordRef{Value: 2500, Period: "05/2024"}, s.MaxRecord)
	assert.Equal(t, RecordRef{Value: 1500, Period: "05/2024"}, s.MinRecord)
	assert.Equal(t, 1, s.QualityCounts[internal.QualityError], "counts ignore the period filter")

	yearOnly := Compute(results, util.IntPtr(2024), nil)
	assert.Equal(t, 4, yearOnly.RecordCount)
	assert.Equal(t, 15000.0, yearOnly.TotalSum)
	assert.Equal(t, RecordRef{Value: 7000, Period: "06/2024"}, yearOnly.MaxRecord)
	assert.Equal(t, 1500.0, yearOnly.MinRecord.Value)
}

func TestComputeSumIsOrderIndependent(t *testing.T) {
	a := []internal.ExtractionResult{
		result(0.1, 1, 2024, internal.QualityGood),
		result(0.2, 1, 2024, internal.QualityGood),
		result(0.3, 1, 2024, internal.QualityGood),
	}
	b := []internal.ExtractionResult{a[2], a[0], a[1]}
	assert.Equal(t, Compute(a, nil, nil).TotalSum, Compute(b, nil, nil).TotalSum)
	assert.Equal(t, 0.6, Compute(a, nil, nil).TotalSum)
}

func TestChartSeriesOrdering(t *testing.T) {
	results := []internal.ExtractionResult{
		result(300, 2, 2024, internal.QualityGood),
		result(100, 11, 2023, internal.QualityGood),
		result(200, 2, 2024, internal.QualityGood),
		result(400, 0, 2024, internal.QualityGood),
		result(0, 1, 2024, internal.QualityGood),
	}
	points := ChartSeries(results, nil, nil)
	require.Len(t, points, 3)
	assert.Equal(t, ChartPoint{PeriodLabel: "11/2023", TotalValue: 100, SortKey: "202311"}, points[0])
	assert.Equal(t, 300.0, points[1].TotalValue, "duplicates keep input order")
	assert.Equal(t, 200.0, points[2].TotalValue)
	assert.Equal(t, "202402", points[2].SortKey)
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "03/2024", PeriodLabel(util.IntPtr(3), util.IntPtr(2024)))
	assert.Equal(t, "2024", PeriodLabel(nil, util.IntPtr(2024)))
	assert.Equal(t, "", PeriodLabel(util.IntPtr(3), nil))
}
