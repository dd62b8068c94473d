package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled line printed in the document header block.
type Field struct {
	Label string
	Value string
}

// Sheet is the printable content of a single memo document.
type Sheet struct {
	Title     string
	Reference string
	Banner    string
	Fields    []Field
	Body      string
	Signature string
	Footer    string
	CreatedAt time.Time
}

// PDFExporter renders memo sheets into A4 PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the sheet. Creation and modification dates are pinned to
// sheet.CreatedAt so the same sheet always yields the same bytes.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if strings.TrimSpace(sheet.Title) == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(sheet.CreatedAt.UTC())
	pdf.SetModificationDate(sheet.CreatedAt.UTC())
	pdf.SetCatalogSort(true)
	pdf.SetTitle(sheet.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if sheet.Banner != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 8, tr(sheet.Banner), "1", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(strings.ToUpper(sheet.Title)), "", 1, "C", false, 0, "")
	if sheet.Reference != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(sheet.Reference), "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	for _, field := range sheet.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, tr(field.Label), "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(": "+field.Value), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr(sheet.Body), "", "J", false)

	if sheet.Signature != "" {
		pdf.Ln(16)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 6, tr(sheet.Signature), "", 1, "R", false, 0, "")
	}

	if sheet.Footer != "" {
		pdf.SetY(-25)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, tr(sheet.Footer), "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
