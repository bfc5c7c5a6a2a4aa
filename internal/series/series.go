// Package series holds the canonical in-memory representation of one
// commodity's price history and the merge that folds freshly fetched rows
// into it.
package series

import (
	"sort"
	"time"
)

// DateFormat is the fixed calendar rendering used everywhere a date leaves
// the process (tracker file, CSV/JSON exports, log output).
const DateFormat = "2006-01-02"

// Record is a single observed price for one calendar day. Year, Month and Day
// are derived from Date and always consistent with it; build records through
// NewRecord so the invariant holds.
type Record struct {
	Date  time.Time
	Price float64
	Year  int32
	Month int8
	Day   int8
}

// NewRecord builds a Record from a date and price. The date is coerced to the
// canonical representation (UTC, midnight) so records from any source compare
// by value.
func NewRecord(date time.Time, price float64) Record {
	d := CanonicalDate(date)
	return Record{
		Date:  d,
		Price: price,
		Year:  int32(d.Year()),
		Month: int8(d.Month()),
		Day:   int8(d.Day()),
	}
}

// CanonicalDate truncates a timestamp to UTC midnight. All date comparisons
// and set operations happen on this representation; string dates must be
// parsed and passed through here before they ever meet a typed date.
func CanonicalDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Result is the outcome of a merge. "No new records" and "new dataset
// created" are observable states for the caller, not silent no-ops.
type Result struct {
	Records []Record
	Added   int
	Created bool
}

// Merge folds freshly fetched records into an existing series. Fetched rows
// whose date is already present are dropped; unseen dates are appended and
// the combined set is re-sorted newest first. Neither input needs to be
// sorted. The existing series wins on overlapping dates.
func Merge(existing, fresh []Record) Result {
	if len(existing) == 0 {
		combined := make([]Record, len(fresh))
		copy(combined, fresh)
		SortDescending(combined)
		return Result{Records: combined, Added: len(combined), Created: true}
	}

	seen := make(map[time.Time]bool, len(existing))
	for _, r := range existing {
		seen[r.Date] = true
	}

	combined := make([]Record, len(existing), len(existing)+len(fresh))
	copy(combined, existing)

	added := 0
	for _, r := range fresh {
		if seen[r.Date] {
			continue
		}
		seen[r.Date] = true
		combined = append(combined, r)
		added++
	}

	SortDescending(combined)
	return Result{Records: combined, Added: added}
}

// SortDescending orders records newest first, the at-rest order of a series.
func SortDescending(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}
