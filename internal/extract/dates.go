package extract

import (
	"time"

	"finreports/internal/table"
	"finreports/internal/util"
)

var (
	emissionKeywords = []string{"emissao", "emitido", "emitida", "data de emissao", "issue", "issued", "emission", "competencia"}
	dueKeywords      = []string{"vencimento", "venc", "vence", "data limite", "due", "pagar ate", "payment due"}
)

type dateField int

const (
	fieldNone dateField = iota
	fieldEmission
	fieldDue
)

// contextRule yields the label text that may describe the date at (row, col).
type contextRule struct {
	name  string
	label func(t table.Table, row, col int) string
}

// Evaluated in this order; the first rule whose label names a field decides.
var contextRules = []contextRule{
	{name: "column", label: func(t table.Table, _, col int) string {
		return t.Columns[col].Name
	}},
	{name: "above", label: func(t table.Table, row, col int) string {
		if row == 0 {
			return ""
		}
		return t.Columns[col].Value(row - 1)
	}},
	{name: "below", label: func(t table.Table, row, col int) string {
		if row+1 >= t.NumRows() {
			return ""
		}
		return t.Columns[col].Value(row + 1)
	}},
	{name: "left", label: func(t table.Table, row, col int) string {
		if col == 0 {
			return ""
		}
		return t.Columns[col-1].Value(row)
	}},
}

func classifyLabel(label string) dateField {
	if label == "" {
		return fieldNone
	}
	if util.ContainsAny(label, emissionKeywords) {
		return fieldEmission
	}
	if util.ContainsAny(label, dueKeywords) {
		return fieldDue
	}
	return fieldNone
}

func classifyDateCell(t table.Table, row, col int) dateField {
	for _, rule := range contextRules {
		if f := classifyLabel(rule.label(t, row, col)); f != fieldNone {
			return f
		}
	}
	return fieldNone
}

// Dates finds the emission and due dates of a document, returned in
// canonical YYYY-MM-DD form. Either may be nil.
//
// Cells are scanned row by row. A labelled date is assigned by its context;
// when no date carries a label, the first date found is taken as the
// emission date and the second as the due date. That ordinal guess has no
// validation signal behind it. Fields still missing are then looked up by
// column name.
func Dates(t table.Table) (emission, due *string) {
	var emissionAt, dueAt *time.Time
	var unlabelled []time.Time

	for r := 0; r < t.NumRows(); r++ {
		for c, col := range t.Columns {
			ts, ok := table.CellDate(col.Kind, col.Cells[r])
			if !ok {
				continue
			}
			switch classifyDateCell(t, r, c) {
			case fieldEmission:
				if emissionAt == nil {
					emissionAt = &ts
				}
			case fieldDue:
				if dueAt == nil {
					dueAt = &ts
				}
			default:
				unlabelled = append(unlabelled, ts)
			}
		}
	}

	if emissionAt == nil && dueAt == nil {
		if len(unlabelled) > 0 {
			emissionAt = &unlabelled[0]
		}
		if len(unlabelled) > 1 {
			dueAt = &unlabelled[1]
		}
	}

	if emissionAt == nil {
		emissionAt = firstDateInColumn(t, emissionKeywords)
	}
	if dueAt == nil {
		dueAt = firstDateInColumn(t, dueKeywords)
	}

	return canonical(emissionAt), canonical(dueAt)
}

func firstDateInColumn(t table.Table, keywords []string) *time.Time {
	for _, col := range t.Columns {
		if !util.ContainsAny(col.Name, keywords) {
			continue
		}
		for _, cell := range col.Cells {
			if ts, ok := table.CellDate(col.Kind, cell); ok {
				return &ts
			}
		}
	}
	return nil
}

func canonical(ts *time.Time) *string {
	if ts == nil {
		return nil
	}
	return util.StringPtr(table.CanonicalDate(*ts))
}
