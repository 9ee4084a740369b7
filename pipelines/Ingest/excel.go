package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
)

// ParseExcel reads an .xlsx workbook into a Dataset. When sheet is empty the
// first sheet in the workbook is used. The first row names the columns.
func ParseExcel(r io.Reader, sheet string) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ErrUnparsableInput{Source: "excel", Reason: err}
	}

	if sheet == "" {
		sheetMap := f.GetSheetMap()
		if len(sheetMap) == 0 {
			return nil, &ErrUnparsableInput{Source: "excel", Reason: fmt.Errorf("workbook has no sheets")}
		}
		sheet = sheetMap[f.GetActiveSheetIndex()]
		if sheet == "" {
			sheet = sheetMap[1]
		}
	}

	records := f.GetRows(sheet)
	if len(records) == 0 {
		return nil, &ErrUnparsableInput{Source: "excel", Reason: fmt.Errorf("sheet %q contains no rows", sheet)}
	}

	columns := make([]string, len(records[0]))
	for i, name := range records[0] {
		columns[i] = strings.TrimSpace(name)
	}

	rows := make([]map[string]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]any, len(columns))
		for i, value := range record {
			if i < len(columns) {
				row[columns[i]] = coerceValue(value)
			}
		}
		rows = append(rows, row)
	}

	dataset := NewDataset("excel")
	dataset.Rows = rows
	dataset.RowCount = len(rows)
	dataset.Columns = buildColumnMetadata(columns, rows)
	dataset.ColumnCount = len(columns)
	dataset.SourceInfo["parsed_at"] = time.Now().Format(time.RFC3339)
	dataset.SourceInfo["sheet"] = sheet

	return dataset, nil
}
