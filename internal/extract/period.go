package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finreports/internal/util"
)

var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`),
	regexp.MustCompile(`[-_\s.](\d{2})$`),
	regexp.MustCompile(`[-_\s.](\d{2})(?:[-_\s.]|$)`),
}

var reShortNumber = regexp.MustCompile(`\d+`)

// Full names match anywhere in the normalized filename.
var monthNames = []struct {
	name  string
	month int
}{
	{"janeiro", 1}, {"january", 1},
	{"fevereiro", 2}, {"february", 2},
	{"marco", 3}, {"march", 3},
	{"abril", 4}, {"april", 4},
	{"maio", 5},
	{"junho", 6}, {"june", 6},
	{"julho", 7}, {"july", 7},
	{"agosto", 8}, {"august", 8},
	{"setembro", 9}, {"september", 9},
	{"outubro", 10}, {"october", 10},
	{"novembro", 11}, {"november", 11},
	{"dezembro", 12}, {"december", 12},
}

// Abbreviations only match whole alphabetic tokens ("out" is not "output").
var monthAbbreviations = map[string]int{
	"jan": 1,
	"fev": 2, "feb": 2,
	"mar": 3,
	"abr": 4, "apr": 4,
	"mai": 5, "may": 5,
	"jun": 6,
	"jul": 7,
	"ago": 8, "aug": 8,
	"set": 9, "sep": 9, "sept": 9,
	"out": 10, "oct": 10,
	"nov": 11,
	"dez": 12, "dec": 12,
}

// PeriodFromFilename infers the reporting (month, year) from a filename.
// The year always resolves, falling back to now's year; month may be nil.
func PeriodFromFilename(name string, now time.Time) (*int, int) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return monthFromName(base), yearFromName(base, now)
}

// PeriodFromFilenameNow is PeriodFromFilename against the current clock.
func PeriodFromFilenameNow(name string) (*int, int) {
	return PeriodFromFilename(name, time.Now())
}

func yearFromName(base string, now time.Time) int {
	maxYear := now.Year() + 5
	for _, re := range yearPatterns {
		for _, m := range re.FindAllStringSubmatch(base, -1) {
			y, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if len(m[1]) == 2 {
				y = pivotYear(y)
			}
			if y >= 2000 && y <= maxYear {
				return y
			}
		}
	}
	return now.Year()
}

func pivotYear(y int) int {
	if y < 50 {
		return 2000 + y
	}
	return 1900 + y
}

func monthFromName(base string) *int {
	norm := util.NormalizeLabel(base)
	for _, m := range monthNames {
		if strings.Contains(norm, m.name) {
			return util.IntPtr(m.month)
		}
	}
	for _, tok := range util.LetterTokens(norm) {
		if month, ok := monthAbbreviations[tok]; ok {
			return util.IntPtr(month)
		}
	}
	for _, tok := range reShortNumber.FindAllString(base, -1) {
		if len(tok) > 2 {
			continue
		}
		if v, _ := strconv.Atoi(tok); v >= 1 && v <= 12 {
			return util.IntPtr(v)
		}
	}
	return nil
}
