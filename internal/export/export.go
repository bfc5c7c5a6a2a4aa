// Package export serializes a canonical series into its three published
// representations: delimited text (csv), self-describing text (json), and
// columnar binary (parquet). All three carry the same logical content; only
// the binary format preserves native types end to end.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/datasetkit/commodity-data/internal/series"
)

// columnarRow is the parquet schema: a genuine DATE column (days since Unix
// epoch), 32-bit year, 8-bit month/day, 64-bit float price.
type columnarRow struct {
	Date  int32   `parquet:"Date,date"`
	Price float64 `parquet:"Price"`
	Year  int32   `parquet:"Year"`
	Month int8    `parquet:"Month"`
	Day   int8    `parquet:"Day"`
}

type jsonRow struct {
	Date  string  `json:"Date"`
	Price float64 `json:"Price"`
	Year  int32   `json:"Year"`
	Month int8    `json:"Month"`
	Day   int8    `json:"Day"`
}

// Export writes csv/<name>.csv, json/<name>.json and parquet/<name>.parquet
// under dir, creating the per-format subdirectories as needed. Existing files
// are overwritten; export always derives from the in-memory series, so
// re-running after a partial write is idempotent.
func Export(dir, name string, records []series.Record) error {
	csvPath := filepath.Join(dir, "csv", name+".csv")
	if err := writeCSV(csvPath, records); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	slog.Info("csv exported", "path", csvPath, "rows", len(records))

	jsonPath := filepath.Join(dir, "json", name+".json")
	if err := writeJSON(jsonPath, records); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	slog.Info("json exported", "path", jsonPath, "rows", len(records))

	parquetPath := filepath.Join(dir, "parquet", name+".parquet")
	if err := writeParquet(parquetPath, records); err != nil {
		return fmt.Errorf("export parquet: %w", err)
	}
	slog.Info("parquet exported", "path", parquetPath, "rows", len(records))

	return nil
}

func writeCSV(path string, records []series.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "Price", "Year", "Month", "Day"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.Format(series.DateFormat),
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatInt(int64(r.Year), 10),
			strconv.FormatInt(int64(r.Month), 10),
			strconv.FormatInt(int64(r.Day), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, records []series.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	rows := make([]jsonRow, len(records))
	for i, r := range records {
		rows[i] = jsonRow{
			Date:  r.Date.Format(series.DateFormat),
			Price: r.Price,
			Year:  r.Year,
			Month: r.Month,
			Day:   r.Day,
		}
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	// Downstream formatting linters require a trailing newline.
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func writeParquet(path string, records []series.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	rows := make([]columnarRow, len(records))
	for i, r := range records {
		rows[i] = columnarRow{
			Date:  daysSinceEpoch(r.Date),
			Price: r.Price,
			Year:  r.Year,
			Month: r.Month,
			Day:   r.Day,
		}
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// ReadParquet reads a columnar export back into records. Used by the upload
// tooling for manifest inspection and by tests for the round-trip property.
func ReadParquet(path string) ([]series.Record, error) {
	rows, err := parquet.ReadFile[columnarRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	records := make([]series.Record, len(rows))
	for i, row := range rows {
		records[i] = series.NewRecord(epochDate(row.Date), row.Price)
	}
	return records, nil
}

func daysSinceEpoch(t time.Time) int32 {
	return int32(t.Unix() / 86400)
}

func epochDate(days int32) time.Time {
	return time.Unix(int64(days)*86400, 0).UTC()
}
