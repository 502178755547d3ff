package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ppi-cli/internal/model"
)

func sampleRecords() []model.Record {
	return []model.Record{
		rec(2024, time.February, "final_demand_total", 140.1, false),
		rec(2024, time.March, "final_demand_total", 140.9, false),
		rec(2025, time.January, "final_demand_total", 142, true),
		rec(2025, time.January, "stage_4_intermediate_demand", -0.5, false),
		rec(2021, time.October, "trade_services", 1234567.25, true),
	}
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()[:1]))

	assert.Equal(t, "date,metric,value,is_preliminary\n2024-02-01,final_demand_total,140.1,0\n", buf.String())
}

func TestWriteCSV_EmptyWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "date,metric,value,is_preliminary\n", buf.String())
}

func TestCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	got, stats, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Rows: 5}, stats)
	assert.ElementsMatch(t, sampleRecords(), got)
}

func TestReadCSV_SkipsBadRows(t *testing.T) {
	in := strings.Join([]string{
		"date,metric,value,is_preliminary",
		"2024-02-01,final_demand,140.1,0",
		"2024-02-15,final_demand,140.1,0",
		"2024-03-01,final_demand,N/A,0",
		"March 2024,final_demand,1,0",
		"2024-03-01,,1,0",
		"2024-03-01,final_demand,1,2",
		"2024-03-01,final_demand,1",
		"2024-04-01,final_demand,141.5,1",
	}, "\n")

	got, stats, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Rows: 8, Skipped: 6}, stats)
	assert.Equal(t, []model.Record{
		rec(2024, time.February, "final_demand", 140.1, false),
		rec(2024, time.April, "final_demand", 141.5, true),
	}, got)
}

func TestReadCSV_NoValidRows(t *testing.T) {
	_, stats, err := ReadCSV(strings.NewReader("date,metric,value,is_preliminary\nbad,x,1,0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid records")
	assert.Equal(t, 1, stats.Skipped)
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("date,metric,value,is_preliminary\n"))
	require.Error(t, err)
}

func TestReadCSV_WrongHeader(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("month,metric,value,flag\n2024-01-01,x,1,0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv header")
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestCSVFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ppi_data_export.csv")
	require.NoError(t, WriteCSVFile(path, sampleRecords()))

	got, _, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	_, _, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppi.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRecords()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["ppi_data"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 6)
	assert.Equal(t, "metric", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "2025-01-01", sheet.Rows[3].Cells[0].String())
	v, err := sheet.Rows[3].Cells[2].Float()
	require.NoError(t, err)
	assert.Equal(t, 142.0, v)
	n, err := sheet.Rows[3].Cells[3].Int()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
