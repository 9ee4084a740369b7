package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	csv := strings.Join([]string{
		"user_id,orders,revenue,active",
		"u1,3,120.50,true",
		"u2,0,0,false",
		"u3,7,89.9,true",
	}, "\n")

	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)

	assert.Equal(t, "csv", ds.Source)
	assert.Equal(t, 3, ds.RowCount)
	assert.Equal(t, 4, ds.ColumnCount)
	assert.Equal(t, []string{"user_id", "orders", "revenue", "active"}, ds.ColumnNames())

	// value coercion
	assert.Equal(t, "u1", ds.Rows[0]["user_id"])
	assert.Equal(t, 3.0, ds.Rows[0]["orders"])
	assert.Equal(t, 120.5, ds.Rows[0]["revenue"])
	assert.Equal(t, true, ds.Rows[0]["active"])

	require.NoError(t, ds.Validate())
}

func TestParseCSV_TypeInferenceAndStats(t *testing.T) {
	csv := strings.Join([]string{
		"name,amount,signup_date",
		"alice,10,2026-01-05",
		"bob,20,2026-02-10",
		"carol,30,2026-03-15",
	}, "\n")

	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)

	byName := make(map[string]ColumnMetadata)
	for _, col := range ds.Columns {
		byName[col.Name] = col
	}

	assert.Equal(t, "string", byName["name"].DataType)
	assert.Equal(t, "numeric", byName["amount"].DataType)
	assert.Equal(t, "datetime", byName["signup_date"].DataType)

	amount := byName["amount"]
	require.NotNil(t, amount.Stats)
	assert.Equal(t, 10.0, amount.Stats.Min)
	assert.Equal(t, 30.0, amount.Stats.Max)
	assert.Equal(t, 60.0, amount.Stats.Sum)
	assert.Equal(t, 20.0, amount.Stats.Mean)
	assert.Equal(t, 3, amount.Stats.Count)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), DefaultParseOptions())
	var unparsable *ErrUnparsableInput
	require.True(t, errors.As(err, &unparsable))
}

func TestParseCSV_RaggedRows(t *testing.T) {
	// Short rows keep their cells; missing ones read as absent
	csv := "a,b,c\n1,2,3\n4,5\n"
	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount)
	assert.Equal(t, 5.0, ds.Rows[1]["b"])
	_, present := ds.Rows[1]["c"]
	assert.False(t, present)
}

func TestParseFile_Dispatch(t *testing.T) {
	csv := "a,b\n1,2\n"

	ds, err := ParseFile("upload.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.RowCount)

	tsv := "a\tb\n1\t2\n"
	ds, err = ParseFile("upload.tsv", strings.NewReader(tsv))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.ColumnNames())
	assert.Equal(t, 2.0, ds.Rows[0]["b"])

	_, err = ParseFile("upload.pdf", strings.NewReader("%PDF"))
	var unparsable *ErrUnparsableInput
	require.True(t, errors.As(err, &unparsable))
	assert.Contains(t, err.Error(), ".pdf")
}

func TestParseDateTime(t *testing.T) {
	accepted := []string{
		"2026-03-01",
		"2026-03-01 15:04:05",
		"2026/03/01",
		"03/01/2026",
	}
	for _, v := range accepted {
		_, err := ParseDateTime(v)
		assert.NoError(t, err, "should parse %q", v)
	}

	_, err := ParseDateTime("not a date")
	assert.Error(t, err)
}

func TestAppendColumn(t *testing.T) {
	csv := "a\n1\n"
	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)

	ds.Rows[0]["derived"] = 0.5
	ds.AppendColumn("derived", "numeric")
	assert.Equal(t, 2, ds.ColumnCount)
	assert.True(t, ds.HasColumn("derived"))

	// idempotent
	ds.AppendColumn("derived", "numeric")
	assert.Equal(t, 2, ds.ColumnCount)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	csv := strings.Join([]string{
		"user_id,orders,revenue",
		"u1,3,120.5",
		"u2,0,0",
	}, "\n")

	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "user_id,orders,revenue", lines[0])
	// whole-number floats serialize without a decimal point
	assert.Equal(t, "u1,3,120.5", lines[1])
	assert.Equal(t, "u2,0,0", lines[2])

	reparsed, err := ParseCSV(bytes.NewReader(buf.Bytes()), DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, ds.Rows, reparsed.Rows)
}

func TestWriteCSV_ColumnSubset(t *testing.T) {
	csv := "a,b,c\n1,2,3\n"
	ds, err := ParseCSV(strings.NewReader(csv), DefaultParseOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, []string{"c", "a"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "c,a", lines[0])
	assert.Equal(t, "3,1", lines[1])
}
