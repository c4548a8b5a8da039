package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Formats supported by the exporters.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// Table is a rectangular export: one header row and any number of data rows.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// WriteCSV writes the table with a header row.
func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, val := range row {
			record[i] = formatValue(val)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(timestampFormat)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteXLSX writes the table as a single-sheet workbook with a styled, frozen
// header and auto filter.
func WriteXLSX(w io.Writer, table Table) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := table.Name
	if sheet == "" {
		sheet = "Report"
	}
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	widths := make([]float64, len(table.Columns))
	for i, col := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
		widths[i] = estimateWidth(col)
	}
	if len(table.Columns) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := file.SetCellStyle(sheet, first, last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, row := range table.Rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			// amounts and addresses stay text so spreadsheets do not round them
			if err := file.SetCellValue(sheet, cell, formatValue(val)); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if c < len(widths) {
				widths[c] = max(widths[c], estimateWidth(formatValue(val)))
			}
		}
	}

	if err := file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if len(table.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add auto filter: %w", err)
		}
	}

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		// Min width 10, max width 50
		width = min(max(width, 10), 50)
		if err := file.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	return file.Write(w)
}

func estimateWidth(s string) float64 {
	return float64(len(s)) * 1.2
}
