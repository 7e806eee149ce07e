// Package pdf renders plain-text job output into simple PDF documents.
package pdf

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Renderer writes text documents as A4 PDFs.
type Renderer struct {
	fontSize   float32
	lineHeight float64
}

func NewRenderer() *Renderer {
	return &Renderer{fontSize: 11, lineHeight: 5.5}
}

// Render produces a PDF with the given title and body text. Paragraphs are
// split on blank lines and wrapped to the page width.
func (r *Renderer) Render(title, body string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		doc.SetFont("Helvetica", "B", 14)
		doc.MultiCell(0, 7, tr(title), "", "L", false)
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "", float64(r.fontSize))
	for _, paragraph := range strings.Split(body, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		doc.MultiCell(0, r.lineHeight, tr(paragraph), "", "L", false)
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
