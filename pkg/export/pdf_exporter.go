package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0
	pdfRowHeight  = 6.0
	pdfFontSize   = 8.0
	pdfTitleSize  = 13.0
	pdfCellMargin = 1.0
)

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Write renders the dataset with an optional title and subtitle to w. The header row repeats on every page.
func (e *PDFExporter) Write(w io.Writer, data Dataset, title, subtitle string) error {
	if err := data.Validate(); err != nil {
		return err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	widths := columnWidths(pdf, data)
	header := func() {
		pdf.SetFont("Arial", "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight+1, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", pdfFontSize)
	}

	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Arial", "B", pdfTitleSize)
		pdf.CellFormat(0, 8, tr(title), "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", pdfFontSize+1)
		pdf.CellFormat(0, 6, tr(subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], pdfRowHeight, tr(fit(pdf, cell, widths[i])), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(data.Rows) == 0 {
		pdf.CellFormat(pdfPageWidth, pdfRowHeight, "No records", "1", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// Render produces the PDF document in memory.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, data, title, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// columnWidths sizes columns by their widest content, scaled to fill the page.
func columnWidths(pdf *gofpdf.Fpdf, data Dataset) []float64 {
	pdf.SetFont("Arial", "B", pdfFontSize)
	widths := make([]float64, len(data.Headers))
	total := 0.0
	for i, h := range data.Headers {
		widths[i] = pdf.GetStringWidth(h) + 2*pdfCellMargin
	}
	pdf.SetFont("Arial", "", pdfFontSize)
	for _, row := range data.Rows {
		for i, cell := range row {
			if w := pdf.GetStringWidth(cell) + 2*pdfCellMargin; w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, w := range widths {
		total += w
	}
	scale := pdfPageWidth / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text)+2*pdfCellMargin <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...")+2*pdfCellMargin > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
