package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreports/internal"
	"finreports/internal/util"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func okResult(total float64) internal.ExtractionResult {
	return internal.ExtractionResult{
		SourceName:  "report.xlsx",
		TotalValue:  total,
		PeriodMonth: util.IntPtr(5),
		PeriodYear:  util.IntPtr(2025),
		Succeeded:   true,
	}
}

func TestValidateGood(t *testing.T) {
	r := Validate(okResult(15000), now)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, internal.QualityGood, r.QualityTier)
}

func TestValidateTotalChecks(t *testing.T) {
	cases := []struct {
		total float64
		want  string
	}{
		{0, "total is zero or negative"},
		{-10, "total is zero or negative"},
		{20_000_000, "total is unusually high"},
		{999.99, "total is unusually low"},
	}
	for _, tc := range cases {
		r := Validate(okResult(tc.total), now)
		assert.Equal(t, []string{tc.want}, r.Warnings, tc.total)
		assert.Equal(t, internal.QualityWarning, r.QualityTier)
	}
}

func TestValidateYearChecks(t *testing.T) {
	r := okResult(5000)
	r.PeriodYear = util.IntPtr(2026)
	assert.Equal(t, []string{"period year 2026 is in the future"}, Validate(r, now).Warnings)

	r.PeriodYear = util.IntPtr(2031)
	assert.Equal(t, []string{"period year 2031 is out of range"}, Validate(r, now).Warnings)

	r.PeriodYear = util.IntPtr(1999)
	assert.Equal(t, []string{"period year 1999 is out of range"}, Validate(r, now).Warnings)
}

func TestValidateDuePrecedesEmission(t *testing.T) {
	r := okResult(5000)
	r.EmissionDate = util.StringPtr("2025-05-10")
	r.DueDate = util.StringPtr("2025-05-09")

	out := Validate(r, now)
	assert.Contains(t, out.Warnings, "due date precedes emission date")
	assert.NotEqual(t, internal.QualityGood, out.QualityTier)
}

func TestValidatePoorTier(t *testing.T) {
	r := okResult(0)
	r.PeriodYear = util.IntPtr(1990)
	r.PeriodMonth = util.IntPtr(13)

	out := Validate(r, now)
	require.Len(t, out.Warnings, 3)
	assert.Equal(t, internal.QualityPoor, out.QualityTier)
}

func TestValidateFailedExtraction(t *testing.T) {
	r := internal.ExtractionResult{SourceName: "bad.xls", ErrorMessage: util.StringPtr("unsupported file format")}
	out := Validate(r, now)
	assert.Equal(t, internal.QualityError, out.QualityTier)
	assert.Equal(t, []string{"unsupported file format"}, out.Warnings)
}

func TestValidateRecoversFromCheckFailure(t *testing.T) {
	orig := runChecks
	t.Cleanup(func() { runChecks = orig })
	runChecks = func(internal.ExtractionResult, time.Time) []string { panic("boom") }

	out := Validate(okResult(5000), now)
	assert.Equal(t, internal.QualityError, out.QualityTier)
	assert.Equal(t, []string{"validation failed: boom"}, out.Warnings)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, internal.QualityGood, TierFor(0))
	assert.Equal(t, internal.QualityWarning, TierFor(1))
	assert.Equal(t, internal.QualityWarning, TierFor(2))
	assert.Equal(t, internal.QualityPoor, TierFor(3))
}
