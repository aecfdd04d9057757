package table

// DateCoercionThreshold is the minimum share of non-null values that must
// parse before a text column is reinterpreted as timestamps.
const DateCoercionThreshold = 0.7

// CoerceDates upgrades string columns whose values mostly parse as dates.
// The input table is left untouched.
func CoerceDates(t Table) Table {
	out := t.Clone()
	for i, col := range out.Columns {
		if InferType(col) != TypeString {
			continue
		}
		if coerced, ok := coerceColumn(col); ok {
			out.Columns[i] = coerced
		}
	}
	return out
}

func coerceColumn(col Column) (Column, bool) {
	nonNull, parsed := 0, 0
	cells := make([]Cell, len(col.Cells))
	for i, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		nonNull++
		if ts, ok := ParseDate(cell.Text); ok {
			parsed++
			cells[i] = Cell{Valid: true, Time: ts, Text: cell.Text}
		}
	}
	if parsed == 0 {
		return col, false
	}
	if float64(parsed)/float64(nonNull) < DateCoercionThreshold {
		return col, false
	}
	return Column{Name: col.Name, Kind: KindTimestamp, Cells: cells}, true
}
