package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF returns one Page per PDF page with non-blank text. Page numbers are
// the 1-based PDF page index, so skipped pages leave gaps.
func (e *Extractor) extractPDF(content []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return e.collectPages(r.NumPage(), func(i int) (string, error) {
		page := r.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return pageText(page)
	}), nil
}

// collectPages reads pages 1..n, keeping those with non-blank text. A page whose
// read fails or panics is logged and skipped.
func (e *Extractor) collectPages(n int, read func(int) (string, error)) []Page {
	var pages []Page
	for i := 1; i <= n; i++ {
		text, err := readPage(i, read)
		if err != nil {
			e.logger.Warn("skipping unreadable PDF page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages
}

func readPage(i int, read func(int) (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: parser panic: %v", i, r)
		}
	}()
	return read(i)
}

// pageText rebuilds the page line by line so that headings keep their line starts.
// Falls back to the flat plain-text rendering when rows cannot be read.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		return page.GetPlainText(nil)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeRow(&b, row.Content)
	}
	return b.String(), nil
}

// writeRow joins the text runs of one row, inserting a space where the horizontal
// gap between runs is wider than a fraction of the font size.
func writeRow(b *strings.Builder, runs pdf.TextHorizontal) {
	sorted := make([]pdf.Text, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var prevEnd float64
	for i, t := range sorted {
		if i > 0 {
			gap := t.X - prevEnd
			if gap > t.FontSize*0.15 && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
	}
}
