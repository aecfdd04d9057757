package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"finreports/internal/table"
)

func TestTotalFromTotalRow(t *testing.T) {
	tbl := table.FromRows("s", [][]string{
		{"Descrição", "Valor"},
		{"Serviço A", "100,00"},
		{"Serviço B", "250,50"},
		{"Total Geral", "R$ 350,50"},
	})
	assert.InDelta(t, 350.50, Total(tbl), 1e-9)
}

func TestTotalPrefersLargestMagnitudeInTotalRows(t *testing.T) {
	tbl := table.FromRows("s", [][]string{
		{"Item", "Débito", "Crédito"},
		{"Subtotal", "100", "200"},
		{"TOTAL", "-5000", "300"},
		{"Outro", "99999", "1"},
	})
	assert.Equal(t, -5000.0, Total(tbl))
}

func TestTotalFallsBackToColumnMaximum(t *testing.T) {
	tbl := table.FromRows("s", [][]string{
		{"Qtd", "Valor"},
		{"1", "100"},
		{"3", "900"},
		{"2", "450"},
	})
	assert.Equal(t, 900.0, Total(tbl))
}

func TestTotalIgnoresDatesAndEmptyTables(t *testing.T) {
	assert.Equal(t, 0.0, Total(table.Table{}))

	tbl := table.CoerceDates(table.FromRows("s", [][]string{
		{"Data"},
		{"01/01/2024"},
		{"02/01/2024"},
	}))
	assert.Equal(t, 0.0, Total(tbl))
}
