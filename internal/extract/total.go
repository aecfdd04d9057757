// Package extract locates the document total, its emission and due dates,
// and the reporting period without knowing the table layout.
package extract

import (
	"math"
	"strings"

	"finreports/internal/table"
	"finreports/internal/util"
)

const totalMarker = "total"

// Total returns the document's grand total. Rows mentioning "total" are
// searched first; the largest magnitude among their numeric cells wins.
// Without such a row, the largest-magnitude column maximum is used.
func Total(t table.Table) float64 {
	best := 0.0
	for r := 0; r < t.NumRows(); r++ {
		if !rowMentionsTotal(t, r) {
			continue
		}
		for _, col := range t.Columns {
			if v, ok := cellAmount(col, r); ok && math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
	}
	if best != 0 {
		return best
	}

	for _, col := range t.Columns {
		max, ok := columnMax(col)
		if ok && math.Abs(max) > math.Abs(best) {
			best = max
		}
	}
	return best
}

func rowMentionsTotal(t table.Table, row int) bool {
	var b strings.Builder
	for _, col := range t.Columns {
		if v := col.Value(row); v != "" {
			b.WriteString(strings.ToLower(v))
			b.WriteByte(' ')
		}
	}
	return strings.Contains(b.String(), totalMarker)
}

func cellAmount(col table.Column, row int) (float64, bool) {
	cell := col.Cells[row]
	if !cell.Valid {
		return 0, false
	}
	switch col.Kind {
	case table.KindNumber:
		return cell.Num, true
	case table.KindTimestamp:
		return 0, false
	default:
		return util.ParseAmount(cell.Text)
	}
}

func columnMax(col table.Column) (float64, bool) {
	max, found := 0.0, false
	for r := range col.Cells {
		v, ok := cellAmount(col, r)
		if !ok {
			continue
		}
		if !found || v > max {
			max, found = v, true
		}
	}
	return max, found
}
