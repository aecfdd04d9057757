package loader

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var reColumnGap = regexp.MustCompile(`\t+| {2,}`)

type pdfBook struct {
	rows [][]string
}

// openPDF reads the text layer only. Each line becomes a row, split into
// cells on tabs or runs of spaces, under a generated col1..N header.
func openPDF(content []byte) (workbook, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	lines := [][]string{}
	width := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			cells := reColumnGap.Split(line, -1)
			if len(cells) > width {
				width = len(cells)
			}
			lines = append(lines, cells)
		}
	}
	return &pdfBook{rows: withGeneratedHeader(lines, width)}, nil
}

func withGeneratedHeader(lines [][]string, width int) [][]string {
	if len(lines) == 0 {
		return nil
	}
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("col%d", i+1)
	}
	return append([][]string{header}, lines...)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (b *pdfBook) Sheets() []string { return []string{""} }

func (b *pdfBook) Rows(string) ([][]string, error) { return b.rows, nil }

func (b *pdfBook) Close() error { return nil }
