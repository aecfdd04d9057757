package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRowsHeadersAndTyping(t *testing.T) {
	tbl := FromRows("sheet", [][]string{
		{"", "", ""},
		{"Descrição", "Valor", "Valor", ""},
		{"Serviço A", "100.5", "1.234,56"},
		{"", "", ""},
		{"Serviço B", "200", ""},
	})

	require.NoError(t, tbl.Validate())
	assert.Equal(t, []string{"Descrição", "Valor", "Valor.1", "Unnamed: 3"}, tbl.Headers())
	assert.Equal(t, 2, tbl.NumRows())

	assert.Equal(t, KindText, tbl.Columns[0].Kind)
	assert.Equal(t, KindNumber, tbl.Columns[1].Kind)
	assert.Equal(t, 200.0, tbl.Columns[1].Cells[1].Num)
	assert.Equal(t, KindText, tbl.Columns[2].Kind, "locale grouped values stay text")
	assert.False(t, tbl.Columns[2].Cells[1].Valid)
	assert.Equal(t, KindNumber, tbl.Columns[3].Kind, "all-null column is numeric")
}

func TestFromRowsEmpty(t *testing.T) {
	tbl := FromRows("empty", [][]string{{" "}, {}})
	assert.Equal(t, 0, tbl.NumRows())
	assert.Empty(t, tbl.Columns)
}

func TestSelectRowsAndHead(t *testing.T) {
	tbl := FromRows("s", [][]string{{"a"}, {"1"}, {"2"}, {"3"}})
	sel := tbl.SelectRows([]int{2, 0})
	assert.Equal(t, []string{"3"}, sel.Row(0))
	assert.Equal(t, []string{"1"}, sel.Row(1))
	assert.Equal(t, 2, tbl.Head(2).NumRows())
	assert.Equal(t, 3, tbl.Head(10).NumRows())
}

func TestInferSchemaStableUnderRowReordering(t *testing.T) {
	rows := [][]string{
		{"name", "amount", "when"},
		{"a", "10", "01/02/2024"},
		{"b", "x", "02/02/2024"},
		{"c", "30", "03/02/2024"},
	}
	reordered := [][]string{rows[0], rows[3], rows[1], rows[2]}

	a := InferSchema(CoerceDates(FromRows("a", rows)))
	b := InferSchema(CoerceDates(FromRows("b", reordered)))
	assert.Equal(t, a, b)
	assert.Equal(t, []ColumnSchema{
		{Name: "name", Type: TypeString},
		{Name: "amount", Type: TypeString},
		{Name: "when", Type: TypeDatetime},
	}, a)
}

func TestCoerceDatesThreshold(t *testing.T) {
	build := func(values ...string) Table {
		rows := [][]string{{"col"}}
		for _, v := range values {
			rows = append(rows, []string{v})
		}
		return FromRows("t", rows)
	}

	t.Run("seven of ten parse", func(t *testing.T) {
		tbl := CoerceDates(build("01/01/2024", "02/01/2024", "03/01/2024", "04/01/2024",
			"05/01/2024", "06/01/2024", "07/01/2024", "n/a", "pending", "?"))
		col := tbl.Columns[0]
		require.Equal(t, KindTimestamp, col.Kind)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), col.Cells[1].Time)
		assert.False(t, col.Cells[7].Valid, "unparsed values become null")
	})

	t.Run("six of ten do not", func(t *testing.T) {
		src := build("01/01/2024", "02/01/2024", "03/01/2024", "04/01/2024",
			"05/01/2024", "06/01/2024", "a", "b", "c", "d")
		tbl := CoerceDates(src)
		assert.Equal(t, KindText, tbl.Columns[0].Kind)
	})

	t.Run("nothing parses", func(t *testing.T) {
		tbl := CoerceDates(build("alpha", "beta"))
		assert.Equal(t, KindText, tbl.Columns[0].Kind)
	})

	t.Run("input not mutated", func(t *testing.T) {
		src := build("2024-03-01", "2024-03-02")
		_ = CoerceDates(src)
		assert.Equal(t, KindText, src.Columns[0].Kind)
	})
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-15", "15/03/2024", "15-03-2024", "15.03.2024", "2024/03/15", "15-Mar-2024", "Mar 15, 2024"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "2024", "Total", "12345"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, in)
	}
}
