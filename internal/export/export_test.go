package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasetkit/commodity-data/internal/series"
)

func sampleRecords() []series.Record {
	return []series.Record{
		series.NewRecord(time.Date(2025, time.November, 14, 0, 0, 0, 0, time.UTC), 63.45),
		series.NewRecord(time.Date(2025, time.November, 13, 0, 0, 0, 0, time.UTC), 62.14),
		series.NewRecord(time.Date(1997, time.January, 6, 0, 0, 0, 0, time.UTC), 3.82),
	}
}

func TestExportWritesAllThreeFormats(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords()

	require.NoError(t, Export(dir, "crude_oil_brent", records))

	for _, rel := range []string{
		filepath.Join("csv", "crude_oil_brent.csv"),
		filepath.Join("json", "crude_oil_brent.json"),
		filepath.Join("parquet", "crude_oil_brent.parquet"),
	} {
		info, err := os.Stat(filepath.Join(dir, rel))
		require.NoError(t, err, rel)
		assert.Greater(t, info.Size(), int64(0), rel)
	}
}

func TestExportCSVRendersStringDates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Export(dir, "s", sampleRecords()))

	data, err := os.ReadFile(filepath.Join(dir, "csv", "s.csv"))
	require.NoError(t, err)

	assert.Contains(t, string(data), "Date,Price,Year,Month,Day")
	assert.Contains(t, string(data), "2025-11-14,63.45,2025,11,14")
	assert.Contains(t, string(data), "1997-01-06,3.82,1997,1,6")
}

func TestExportJSONNativeNumericsAndTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Export(dir, "s", sampleRecords()))

	data, err := os.ReadFile(filepath.Join(dir, "json", "s.json"))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte('\n'), data[len(data)-1], "json export must end with a newline byte")

	var rows []struct {
		Date  string  `json:"Date"`
		Price float64 `json:"Price"`
		Year  int32   `json:"Year"`
		Month int8    `json:"Month"`
		Day   int8    `json:"Day"`
	}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-11-14", rows[0].Date)
	assert.Equal(t, 63.45, rows[0].Price)
	assert.Equal(t, int32(2025), rows[0].Year)
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords()
	require.NoError(t, Export(dir, "s", records))

	got, err := ReadParquet(filepath.Join(dir, "parquet", "s.parquet"))
	require.NoError(t, err)
	require.Len(t, got, len(records))

	for i, want := range records {
		assert.True(t, got[i].Date.Equal(want.Date), "record %d date: %s != %s", i, got[i].Date, want.Date)
		assert.Equal(t, want.Price, got[i].Price, "record %d price", i)
		assert.Equal(t, want.Year, got[i].Year, "record %d year", i)
		assert.Equal(t, want.Month, got[i].Month, "record %d month", i)
		assert.Equal(t, want.Day, got[i].Day, "record %d day", i)
	}
}

func TestExportOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Export(dir, "s", sampleRecords()))

	shorter := sampleRecords()[:1]
	require.NoError(t, Export(dir, "s", shorter))

	got, err := ReadParquet(filepath.Join(dir, "parquet", "s.parquet"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
