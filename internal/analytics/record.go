package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one observed analytics event. Immutable once created.
// Value carries the event's magnitude: 1 for a page view or activity,
// the participant count for a discrete event.
type Record struct {
	ID        string
	Timestamp time.Time
	Value     decimal.Decimal
	Metadata  map[string]any
}

// MetaString returns a string metadata field, or "" when absent or non-string.
func (r Record) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// Day returns the record's calendar date in its own location (not UTC-normalized).
// The same convention is used for day bucketing, peak day and peak hour.
func (r Record) Day() string {
	return r.Timestamp.Format("2006-01-02")
}

// MonthKey identifies one calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month bucket a timestamp falls in.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// String renders the key as "2006-01".
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Before reports whether k is chronologically before other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// GroupByMonth buckets records by calendar month, preserving input order
// within each bucket.
func GroupByMonth(records []Record) map[MonthKey][]Record {
	groups := make(map[MonthKey][]Record)
	for _, r := range records {
		key := MonthOf(r.Timestamp)
		groups[key] = append(groups[key], r)
	}
	return groups
}

// SortedMonthKeys returns the keys of a month grouping in ascending order.
func SortedMonthKeys(groups map[MonthKey][]Record) []MonthKey {
	keys := make([]MonthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
