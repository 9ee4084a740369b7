package ingest

import (
	"fmt"
	"strconv"
	"time"
)

// Dataset represents a parsed tabular upload.
// Rows keep the uploaded values in table order under their original column
// names; all downstream stages read through a schema mapping and append
// derived columns rather than mutating the originals.
type Dataset struct {
	Source     string         `json:"source"` // "csv", "excel"
	SourceInfo map[string]any `json:"source_info"`

	Columns     []ColumnMetadata `json:"columns"`
	ColumnCount int              `json:"column_count"`

	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`

	CreatedAt time.Time `json:"created_at"`
}

// ColumnMetadata describes a column's characteristics
type ColumnMetadata struct {
	Name       string `json:"name"`
	Index      int    `json:"index"`
	DataType   string `json:"data_type"` // "string", "numeric", "datetime", "boolean"
	IsNumeric  bool   `json:"is_numeric"`
	IsDateTime bool   `json:"is_datetime"`
	NullCount  int    `json:"null_count"`

	// Statistical summary, numeric columns only
	Stats *ColumnStats `json:"stats,omitempty"`
}

// ColumnStats contains statistical information for numeric columns
type ColumnStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// NewDataset creates an empty dataset for the given source
func NewDataset(source string) *Dataset {
	return &Dataset{
		Source:     source,
		SourceInfo: make(map[string]any),
		Columns:    []ColumnMetadata{},
		Rows:       []map[string]any{},
		CreatedAt:  time.Now(),
	}
}

// Validate checks basic dataset consistency
func (ds *Dataset) Validate() error {
	if ds.RowCount == 0 {
		return fmt.Errorf("dataset is empty (0 rows)")
	}
	if ds.ColumnCount == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	if len(ds.Columns) != ds.ColumnCount {
		return fmt.Errorf("column count mismatch: expected %d, got %d", ds.ColumnCount, len(ds.Columns))
	}
	if len(ds.Rows) != ds.RowCount {
		return fmt.Errorf("row count mismatch: expected %d, got %d", ds.RowCount, len(ds.Rows))
	}
	return nil
}

// ColumnNames returns the column names in table order
func (ds *Dataset) ColumnNames() []string {
	names := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether a column with the given name exists
func (ds *Dataset) HasColumn(name string) bool {
	for _, col := range ds.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// AppendColumn registers a derived column appended to the rows by a
// downstream stage. Values must already be present in the rows under name.
func (ds *Dataset) AppendColumn(name, dataType string) {
	if ds.HasColumn(name) {
		return
	}
	ds.Columns = append(ds.Columns, ColumnMetadata{
		Name:      name,
		Index:     len(ds.Columns),
		DataType:  dataType,
		IsNumeric: dataType == "numeric",
	})
	ds.ColumnCount = len(ds.Columns)
}

// buildColumnMetadata infers types and computes stats for all columns
func buildColumnMetadata(columns []string, rows []map[string]any) []ColumnMetadata {
	metadata := make([]ColumnMetadata, len(columns))
	for i, name := range columns {
		colMeta := ColumnMetadata{
			Name:     name,
			Index:    i,
			DataType: inferColumnType(rows, name),
		}
		colMeta.IsNumeric = colMeta.DataType == "numeric"
		colMeta.IsDateTime = colMeta.DataType == "datetime"

		for _, row := range rows {
			if v, ok := row[name]; !ok || v == nil || v == "" {
				colMeta.NullCount++
			}
		}

		if colMeta.IsNumeric {
			colMeta.Stats = computeColumnStats(rows, name)
		}

		metadata[i] = colMeta
	}
	return metadata
}

// inferColumnType infers the data type of a column from sample values
func inferColumnType(rows []map[string]any, columnName string) string {
	if len(rows) == 0 {
		return "string"
	}

	numericCount := 0
	datetimeCount := 0
	boolCount := 0
	sampleSize := 10
	if len(rows) < sampleSize {
		sampleSize = len(rows)
	}

	for i := 0; i < sampleSize; i++ {
		value := rows[i][columnName]

		switch v := value.(type) {
		case float64, int:
			numericCount++
		case bool:
			boolCount++
		case string:
			if IsDateTime(v) {
				datetimeCount++
			}
		}
	}

	if numericCount >= sampleSize/2 {
		return "numeric"
	}
	if datetimeCount >= sampleSize/2 {
		return "datetime"
	}
	if boolCount >= sampleSize/2 {
		return "boolean"
	}
	return "string"
}

// dateFormats are the timestamp layouts accepted in uploaded columns
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	time.RFC3339,
	time.RFC822,
}

// IsDateTime checks if a string represents a datetime
func IsDateTime(value string) bool {
	_, err := ParseDateTime(value)
	return err == nil
}

// ParseDateTime parses a string using the accepted upload timestamp layouts
func ParseDateTime(value string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", value)
}

// computeColumnStats computes statistics for numeric columns
func computeColumnStats(rows []map[string]any, columnName string) *ColumnStats {
	stats := &ColumnStats{}

	var values []float64
	for _, row := range rows {
		value := row[columnName]
		if value == nil {
			continue
		}

		var numVal float64
		switch v := value.(type) {
		case float64:
			numVal = v
		case int:
			numVal = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			numVal = parsed
		default:
			continue
		}

		values = append(values, numVal)
	}

	stats.Count = len(values)
	if len(values) == 0 {
		return stats
	}

	min := values[0]
	max := values[0]
	sum := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	stats.Min = min
	stats.Max = max
	stats.Sum = sum
	stats.Mean = sum / float64(len(values))

	return stats
}
