// Package table holds the in-memory grid every loader produces and the
// column typing rules applied to it.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finreports/internal/util"
)

// Kind is the declared storage kind of a column.
type Kind string

const (
	KindNumber     Kind = "number"
	KindText       Kind = "text"
	KindTimestamp  Kind = "timestamp"
	KindUnresolved Kind = "unresolved"
)

// Cell is a nullable value. Which field is meaningful depends on the owning
// column's Kind; Text always carries the source representation.
type Cell struct {
	Valid bool
	Num   float64
	Text  string
	Time  time.Time
}

func NumberCell(v float64) Cell {
	return Cell{Valid: true, Num: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

func TextCell(s string) Cell {
	return Cell{Valid: true, Text: s}
}

func TimeCell(t time.Time) Cell {
	return Cell{Valid: true, Time: t, Text: t.Format(time.DateTime)}
}

type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

type Table struct {
	Name    string
	Columns []Column
}

func (t Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t Table) Column(name string) (Column, bool) {
	if i := t.ColumnIndex(name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

// Value renders a cell for display and keyword matching. Null cells render
// as the empty string.
func (c Column) Value(row int) string {
	cell := c.Cells[row]
	if !cell.Valid {
		return ""
	}
	switch c.Kind {
	case KindTimestamp:
		if cell.Time.Hour() == 0 && cell.Time.Minute() == 0 && cell.Time.Second() == 0 {
			return cell.Time.Format(time.DateOnly)
		}
		return cell.Time.Format(time.DateTime)
	case KindNumber:
		return strconv.FormatFloat(cell.Num, 'f', -1, 64)
	default:
		return cell.Text
	}
}

// Row returns the display values of one row.
func (t Table) Row(row int) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Value(row)
	}
	return out
}

func (t Table) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// SelectRows returns a new table holding only the given rows, in order.
func (t Table) SelectRows(rows []int) Table {
	out := Table{Name: t.Name, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		cells := make([]Cell, 0, len(rows))
		for _, r := range rows {
			cells = append(cells, c.Cells[r])
		}
		out.Columns[i] = Column{Name: c.Name, Kind: c.Kind, Cells: cells}
	}
	return out
}

// Head returns at most n leading rows.
func (t Table) Head(n int) Table {
	if n < 0 || n >= t.NumRows() {
		return t
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.SelectRows(rows)
}

// Clone copies column slices so callers may replace columns freely.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		cells := make([]Cell, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[i] = Column{Name: c.Name, Kind: c.Kind, Cells: cells}
	}
	return out
}

// Validate checks the table invariants: equal column lengths and unique
// column names.
func (t Table) Validate() error {
	seen := map[string]struct{}{}
	n := t.NumRows()
	for _, c := range t.Columns {
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Cells) != n {
			return fmt.Errorf("column %q has %d cells, want %d", c.Name, len(c.Cells), n)
		}
	}
	return nil
}

// FromRows builds a table from a raw string grid. The first non-blank row is
// the header; blank data rows are dropped and blank cells are null. A column
// whose non-null cells all parse as plain numbers is declared number.
func FromRows(name string, rows [][]string) Table {
	start := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return Table{Name: name}
	}

	width := 0
	for _, row := range rows[start:] {
		if len(row) > width {
			width = len(row)
		}
	}

	headers := uniqueHeaders(padRow(rows[start], width))
	data := make([][]string, 0, len(rows)-start-1)
	for _, row := range rows[start+1:] {
		if isBlankRow(row) {
			continue
		}
		data = append(data, padRow(row, width))
	}

	t := Table{Name: name, Columns: make([]Column, width)}
	for c := 0; c < width; c++ {
		raw := make([]string, len(data))
		for r, row := range data {
			raw[r] = strings.TrimSpace(row[c])
		}
		t.Columns[c] = typedColumn(headers[c], raw)
	}
	return t
}

func typedColumn(name string, raw []string) Column {
	numbers := make([]float64, len(raw))
	numeric := true
	for i, v := range raw {
		if v == "" {
			continue
		}
		n, ok := util.ParseNumber(v)
		if !ok {
			numeric = false
			break
		}
		numbers[i] = n
	}

	col := Column{Name: name, Cells: make([]Cell, len(raw))}
	if numeric {
		col.Kind = KindNumber
		for i, v := range raw {
			if v != "" {
				col.Cells[i] = Cell{Valid: true, Num: numbers[i], Text: v}
			}
		}
		return col
	}

	col.Kind = KindText
	for i, v := range raw {
		if v != "" {
			col.Cells[i] = TextCell(v)
		}
	}
	return col
}

func uniqueHeaders(row []string) []string {
	out := make([]string, len(row))
	counts := map[string]int{}
	for i, h := range row {
		h = util.NormalizeSpaces(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		base := h
		for {
			if _, taken := counts[h]; !taken {
				break
			}
			counts[base]++
			h = fmt.Sprintf("%s.%d", base, counts[base])
		}
		counts[h] = 0
		out[i] = h
	}
	return out
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
