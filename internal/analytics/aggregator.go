package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyAggregate is the statistical summary of one category for one
// calendar month. It is the unit of persistence: at most one aggregate
// exists per (category, year, month).
type MonthlyAggregate struct {
	Category Category
	Year     int
	Month    time.Month

	// TotalCount is the exact sum of record values.
	TotalCount decimal.Decimal
	// UniqueCount is the number of distinct calendar days with at least one record.
	UniqueCount int
	// AverageDaily is TotalCount / UniqueCount rounded half away from zero,
	// or zero when the month has no records.
	AverageDaily decimal.Decimal
	// PeakDay is the "2006-01-02" date with the highest summed value;
	// ties resolve to the earliest date. Empty when the month has no records.
	PeakDay string
	// PeakHour is the hour of day (0-23) with the highest summed value
	// across the whole month; ties resolve to the lowest hour.
	PeakHour int

	LastUpdated time.Time

	// BreakdownField / Breakdown hold the category-specific distribution,
	// e.g. topPaths for page views.
	BreakdownField string
	Breakdown      any

	// Days is the ascending per-day breakdown used by the document body.
	// It is rendered, not persisted in the header.
	Days []DayStat
}

// DayStat is one day's slice of the monthly breakdown.
type DayStat struct {
	Date    string
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal
}

// Aggregate computes the monthly summary for one category and month.
// It is a pure function of its inputs: no I/O, deterministic, and
// insensitive to record ordering.
func Aggregate(category Category, key MonthKey, records []Record, now time.Time) MonthlyAggregate {
	agg := MonthlyAggregate{
		Category:    category,
		Year:        key.Year,
		Month:       key.Month,
		TotalCount:  decimal.Zero,
		LastUpdated: now,
	}

	dayTotals := make(map[string]decimal.Decimal)
	dayCounts := make(map[string]int)
	var hourTotals [24]decimal.Decimal

	for _, r := range records {
		agg.TotalCount = agg.TotalCount.Add(r.Value)
		day := r.Day()
		dayTotals[day] = dayTotals[day].Add(r.Value)
		dayCounts[day]++
		hour := r.Timestamp.Hour()
		hourTotals[hour] = hourTotals[hour].Add(r.Value)
	}

	agg.UniqueCount = len(dayTotals)
	if agg.UniqueCount > 0 {
		agg.AverageDaily = agg.TotalCount.Div(decimal.NewFromInt(int64(agg.UniqueCount))).Round(0)
	} else {
		agg.AverageDaily = decimal.Zero
	}

	days := make([]string, 0, len(dayTotals))
	for day := range dayTotals {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		total := dayTotals[day]
		count := dayCounts[day]
		avg := decimal.Zero
		if count > 0 {
			avg = total.Div(decimal.NewFromInt(int64(count))).Round(0)
		}
		agg.Days = append(agg.Days, DayStat{Date: day, Total: total, Count: count, Average: avg})
		// Earliest date wins ties by virtue of the ascending iteration.
		if agg.PeakDay == "" || total.GreaterThan(dayTotals[agg.PeakDay]) {
			agg.PeakDay = day
		}
	}

	for hour := 1; hour < 24; hour++ {
		if hourTotals[hour].GreaterThan(hourTotals[agg.PeakHour]) {
			agg.PeakHour = hour
		}
	}

	if strategy, ok := Strategies[category]; ok && len(records) > 0 {
		agg.BreakdownField, agg.Breakdown = strategy.Breakdown(records)
	}

	return agg
}
