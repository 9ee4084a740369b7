package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/360EntSecGroup-Skylar/excelize"
)

// WriteCSV serializes the dataset back to delimited text so an augmented
// table can be downloaded. columns fixes the output order; when nil, the
// dataset's own column order (original columns first, derived ones appended)
// is used.
func WriteCSV(w io.Writer, ds *Dataset, columns []string) error {
	if columns == nil {
		columns = ds.ColumnNames()
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range ds.Rows {
		for j, col := range columns {
			record[j] = formatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteExcel serializes the dataset to an .xlsx workbook
func WriteExcel(w io.Writer, ds *Dataset, columns []string, sheet string) error {
	if columns == nil {
		columns = ds.ColumnNames()
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(1), sheet)

	for j, col := range columns {
		f.SetCellValue(sheet, cellName(j+1, 1), col)
	}
	for i, row := range ds.Rows {
		for j, col := range columns {
			f.SetCellValue(sheet, cellName(j+1, i+2), row[col])
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellName(col, row int) string {
	colStr := ""
	for col > 0 {
		col--
		colStr = string(rune('A'+col%26)) + colStr
		col /= 26
	}
	return fmt.Sprintf("%s%d", colStr, row)
}

// formatCell renders a parsed cell value back to text. Whole-number floats
// round-trip without a decimal point so scores and counts stay readable.
func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
