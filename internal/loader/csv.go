package loader

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var delimiters = []rune{',', ';', '\t', '|'}

type csvBook struct {
	rows [][]string
}

func openCSV(content []byte) (workbook, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(content)
	if !utf8.Valid(content) {
		// Spreadsheet exports from Windows default to cp1252.
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}
	text, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(string(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return &csvBook{rows: rows}, nil
}

func sniffDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func (b *csvBook) Sheets() []string { return []string{""} }

func (b *csvBook) Rows(string) ([][]string, error) { return b.rows, nil }

func (b *csvBook) Close() error { return nil }
