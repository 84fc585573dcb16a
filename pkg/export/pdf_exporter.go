package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Section is one titled table within a PDF document.
type Section struct {
	Title string
	Data  Dataset
}

// Document is a multi-section report rendered to a single PDF.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// PDFExporter renders report documents into tabular PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF with a title page header and one table per section.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, doc.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		if len(section.Data.Headers) == 0 {
			return nil, fmt.Errorf("section %q requires at least one header", section.Title)
		}

		if section.Title != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 9, section.Title, "", 1, "L", false, 0, "")
			pdf.Ln(1)
		}

		colWidth := 190.0 / float64(len(section.Data.Headers))
		pdf.SetFont("Arial", "B", 10)
		for _, header := range section.Data.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Data.Rows {
			for _, header := range section.Data.Headers {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(5)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
