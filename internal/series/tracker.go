package series

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Tracker file layout: Date,Price,Year,Month,Day with dates rendered as
// YYYY-MM-DD. It is the persisted form of the canonical series, read at run
// start and overwritten at run end.

var trackerHeader = []string{"Date", "Price", "Year", "Month", "Day"}

// LoadTracker reads the persisted series. A missing or empty file yields an
// empty series; that is the first-run case, not an error. Malformed rows are
// an error — rows are never silently dropped.
func LoadTracker(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open tracker: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read tracker: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("tracker row %d: expected at least 2 fields, got %d", i+2, len(row))
		}
		// Dates are stored as strings; coerce to the canonical typed date
		// here so the merge never compares mixed representations.
		date, err := time.Parse(DateFormat, row[0])
		if err != nil {
			return nil, fmt.Errorf("tracker row %d: parse date %q: %w", i+2, row[0], err)
		}
		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("tracker row %d: parse price %q: %w", i+2, row[1], err)
		}
		// Year/Month/Day columns are re-derived from the date rather than
		// trusted, keeping derived fields consistent by construction.
		records = append(records, NewRecord(date, price))
	}
	return records, nil
}

// SaveTracker overwrites the tracker file with the given records, creating
// the parent directory if needed.
func SaveTracker(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create tracker dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(trackerHeader); err != nil {
		return fmt.Errorf("write tracker header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.Format(DateFormat),
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatInt(int64(r.Year), 10),
			strconv.FormatInt(int64(r.Month), 10),
			strconv.FormatInt(int64(r.Day), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write tracker row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush tracker: %w", err)
	}
	return f.Close()
}
