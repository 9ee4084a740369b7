package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsableInput marks an upload that could not be read as tabular data.
// Nothing downstream runs when this is returned.
type ErrUnparsableInput struct {
	Source string
	Reason error
}

func (e *ErrUnparsableInput) Error() string {
	return fmt.Sprintf("unparsable %s input: %v", e.Source, e.Reason)
}

func (e *ErrUnparsableInput) Unwrap() error {
	return e.Reason
}

// ParseOptions controls delimited-text parsing
type ParseOptions struct {
	Delimiter  rune
	HasHeaders bool
}

// DefaultParseOptions returns the options used for plain .csv uploads
func DefaultParseOptions() ParseOptions {
	return ParseOptions{Delimiter: ',', HasHeaders: true}
}

// ParseCSV reads delimited text into a Dataset. The header row names the
// columns; values are coerced to float64, bool, or trimmed string.
func ParseCSV(r io.Reader, opts ParseOptions) (*Dataset, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ErrUnparsableInput{Source: "csv", Reason: err}
	}
	if len(records) == 0 {
		return nil, &ErrUnparsableInput{Source: "csv", Reason: fmt.Errorf("file contains no rows")}
	}

	var columns []string
	if opts.HasHeaders {
		columns = make([]string, len(records[0]))
		for i, name := range records[0] {
			columns[i] = strings.TrimSpace(name)
		}
		records = records[1:]
	} else {
		columns = make([]string, len(records[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(columns))
		for i, value := range record {
			if i < len(columns) {
				row[columns[i]] = coerceValue(value)
			}
		}
		rows = append(rows, row)
	}

	dataset := NewDataset("csv")
	dataset.Rows = rows
	dataset.RowCount = len(rows)
	dataset.Columns = buildColumnMetadata(columns, rows)
	dataset.ColumnCount = len(columns)
	dataset.SourceInfo["parsed_at"] = time.Now().Format(time.RFC3339)
	dataset.SourceInfo["delimiter"] = string(opts.Delimiter)

	return dataset, nil
}

// ParseFile dispatches on the file extension: .csv and .tsv go through the
// delimited-text path, .xlsx through excelize.
func ParseFile(name string, r io.Reader) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", "":
		return ParseCSV(r, DefaultParseOptions())
	case ".tsv":
		return ParseCSV(r, ParseOptions{Delimiter: '\t', HasHeaders: true})
	case ".xlsx", ".xlsm":
		return ParseExcel(r, "")
	default:
		return nil, &ErrUnparsableInput{
			Source: "upload",
			Reason: fmt.Errorf("unsupported file type %q (expected .csv, .tsv, or .xlsx)", filepath.Ext(name)),
		}
	}
}

// coerceValue parses a raw cell into float64, bool, or trimmed string
func coerceValue(value string) any {
	trimmed := strings.TrimSpace(value)
	if numVal, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return numVal
	}
	if boolVal, err := strconv.ParseBool(trimmed); err == nil {
		return boolVal
	}
	return trimmed
}
