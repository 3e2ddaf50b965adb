package upload

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF has no extractable text layer.
var ErrNoText = errors.New("no text found in document")

var pdfHeader = []byte("%PDF-")

// pdfText returns the text layer of a PDF, one line per text row with the
// top of each page first. Scanned images yield ErrNoText.
func pdfText(data []byte) (text string, err error) {
	if !bytes.HasPrefix(data, pdfHeader) {
		return "", errors.New("missing PDF header")
	}
	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			b.WriteString(rowText(row))
			b.WriteByte('\n')
		}
	}

	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// rowText joins the runs of a row. Runs drawn at the same x offset are
// pieces of one TJ array and are concatenated; separate runs get a space.
func rowText(row *pdf.Row) string {
	var b strings.Builder
	for i, t := range row.Content {
		if i > 0 && t.X != row.Content[i-1].X &&
			!strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
	}
	return b.String()
}
