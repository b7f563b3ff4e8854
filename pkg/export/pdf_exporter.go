package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

const unicodeFamily = "unicode"

// PDFExporter renders datasets into a landscape tabular PDF. The core PDF
// fonts only cover Latin-1, so Cyrillic cells need a TrueType font on disk.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. fontPath may be empty, in which
// case the built-in Arial font is used.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	fontDir, fontFile := "", ""
	if e.fontPath != "" {
		if _, err := os.Stat(e.fontPath); err != nil {
			return nil, fmt.Errorf("load pdf font: %w", err)
		}
		fontDir, fontFile = filepath.Split(e.fontPath)
	}

	pdf := gofpdf.New("L", "mm", "A4", fontDir)
	pdf.SetMargins(8, 12, 8)

	family := "Arial"
	if fontFile != "" {
		pdf.AddUTF8Font(unicodeFamily, "", fontFile)
		pdf.AddUTF8Font(unicodeFamily, "B", fontFile)
		family = unicodeFamily
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(family, "B", 13)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	pdf.SetFont(family, "B", 8)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 7)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 6, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
