package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfFont       = "Arial"
	pdfFontSize   = 8
	pdfRowHeight  = 6
	pdfMargin     = 10
	pdfSampleRows = 100
)

// WritePDF renders the table on landscape A4 pages, repeating the header on
// every page.
func WritePDF(w io.Writer, table Table, generatedAt time.Time) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	title := table.Name
	if title == "" {
		title = "Report"
	}
	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", pdfFontSize)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(timestampFormat)), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	widths := columnWidths(pdf, table)
	header := func() {
		pdf.SetFont(pdfFont, "B", pdfFontSize)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], pdfRowHeight+1, col, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", pdfFontSize)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	for r, row := range table.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin {
			pdf.AddPage()
			header()
		}
		if r%2 == 1 {
			pdf.SetFillColor(242, 242, 242)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for i := range table.Columns {
			var val string
			if i < len(row) {
				val = fit(pdf, formatValue(row[i]), widths[i])
			}
			pdf.CellFormat(widths[i], pdfRowHeight, val, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

// columnWidths sizes columns to their widest sampled cell, scaled down to the
// printable width when needed.
func columnWidths(pdf *gofpdf.Fpdf, table Table) []float64 {
	pageWidth, _ := pdf.GetPageSize()
	available := pageWidth - 2*pdfMargin

	widths := make([]float64, len(table.Columns))
	pdf.SetFont(pdfFont, "B", pdfFontSize)
	for i, col := range table.Columns {
		widths[i] = pdf.GetStringWidth(col) + 4
	}
	pdf.SetFont(pdfFont, "", pdfFontSize)
	for _, row := range table.Rows[:min(len(table.Rows), pdfSampleRows)] {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], pdf.GetStringWidth(formatValue(row[i]))+4)
			}
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s)+2 <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...")+2 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
