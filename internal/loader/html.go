package loader

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"finreports/internal/util"
)

type htmlBook struct {
	names  []string
	tables map[string][][]string
}

func openHTML(content []byte) (workbook, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return htmlTables(doc), nil
}

// htmlTables turns every <table> into a sheet named table1..N.
func htmlTables(doc *goquery.Document) *htmlBook {
	book := &htmlBook{tables: map[string][][]string{}}
	doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
		rows := [][]string{}
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		name := fmt.Sprintf("table%d", i+1)
		book.names = append(book.names, name)
		book.tables[name] = rows
	})
	return book
}

func (b *htmlBook) Sheets() []string { return b.names }

func (b *htmlBook) Rows(sheet string) ([][]string, error) {
	rows, ok := b.tables[sheet]
	if !ok {
		return nil, ErrSheetNotFound
	}
	return rows, nil
}

func (b *htmlBook) Close() error { return nil }
