package table

import (
	"strings"
	"time"
)

// CanonicalDateLayout is the textual form extracted dates are stored in.
const CanonicalDateLayout = time.DateOnly

// Numeric layouts are day-first: the reports this tool reads are Brazilian.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate tries every accepted layout against the trimmed input.
func ParseDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CellDate returns the date held by a cell of the given column kind.
func CellDate(kind Kind, cell Cell) (time.Time, bool) {
	if !cell.Valid {
		return time.Time{}, false
	}
	switch kind {
	case KindTimestamp:
		return cell.Time, true
	case KindText, KindUnresolved:
		return ParseDate(cell.Text)
	}
	return time.Time{}, false
}

func CanonicalDate(t time.Time) string {
	return t.Format(CanonicalDateLayout)
}
