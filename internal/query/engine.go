// Package query derives higher-level analytics (grouped series, trends,
// top items) purely from persisted monthly documents, without re-reading
// raw event data.
package query

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/store"
)

// Engine reads persisted aggregates through the store facade.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewEngine creates a query engine.
func NewEngine(st *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, logger: logger, nowFn: time.Now}
}

// Filter selects and shapes a query. Zero categories means all categories.
// GroupBy is one of "", "day", "week", "week-of-year", "month", "year";
// empty keeps the native monthly points.
type Filter struct {
	Categories []analytics.Category
	Start      *time.Time
	End        *time.Time
	GroupBy    string
}

// Point is one series data point. Date is the first day of the underlying
// month (or group).
type Point struct {
	Label string
	Date  time.Time
	Total decimal.Decimal
	Count int
}

// Summary condenses one category's series.
type Summary struct {
	Total   decimal.Decimal
	Average decimal.Decimal
	Peak    Point
	Points  int
}

// CategoryResult is the per-category query outcome.
type CategoryResult struct {
	Summary Summary
	Series  []Point
}

// Query reads every matching document per requested category and returns a
// summary plus the (possibly regrouped) series. Categories with no matching
// documents are absent from the result.
func (e *Engine) Query(f Filter) (map[analytics.Category]CategoryResult, error) {
	categories := f.Categories
	if len(categories) == 0 {
		categories = analytics.Categories
	}

	results := make(map[analytics.Category]CategoryResult)
	for _, cat := range categories {
		points, err := e.monthlyPoints(cat, f.Start, f.End)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			continue
		}

		series := regroup(points, f.GroupBy)
		results[cat] = CategoryResult{Summary: summarize(series), Series: series}
	}
	return results, nil
}

// monthlyPoints lists and reads the documents of one category whose month
// overlaps the optional [start, end] range, in ascending month order.
func (e *Engine) monthlyPoints(category analytics.Category, start, end *time.Time) ([]Point, error) {
	entries, err := e.store.List(category)
	if err != nil {
		return nil, err
	}

	var points []Point
	// List is most-recent-first; walk backwards for an ascending series.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		monthStart := time.Date(entry.Year, entry.Month, 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
		if start != nil && monthEnd.Before(*start) {
			continue
		}
		if end != nil && monthStart.After(*end) {
			continue
		}

		doc, err := e.store.Get(entry.Category, entry.Year, entry.Month)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		points = append(points, Point{
			Label: fmt.Sprintf("%04d-%02d", entry.Year, int(entry.Month)),
			Date:  monthStart,
			Total: doc.Header.Decimal("totalCount"),
			Count: doc.Header.Int("uniqueCount"),
		})
	}
	return points, nil
}

// regroup folds monthly points into coarser (or re-labelled) buckets,
// summing totals and counts within each group. Unknown group keys keep the
// native series.
func regroup(points []Point, groupBy string) []Point {
	var label func(t time.Time) string
	switch groupBy {
	case "day":
		label = func(t time.Time) string { return t.Format("2006-01-02") }
	case "week":
		// Calendar weeks, labelled by their Monday.
		label = func(t time.Time) string { return weekStart(t).Format("2006-01-02") }
	case "week-of-year":
		label = func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		}
	case "month":
		label = func(t time.Time) string { return t.Format("2006-01") }
	case "year":
		label = func(t time.Time) string { return t.Format("2006") }
	default:
		return points
	}

	grouped := make(map[string]*Point)
	var order []string
	for _, p := range points {
		key := label(p.Date)
		g, ok := grouped[key]
		if !ok {
			g = &Point{Label: key, Date: p.Date, Total: decimal.Zero}
			grouped[key] = g
			order = append(order, key)
		}
		g.Total = g.Total.Add(p.Total)
		g.Count += p.Count
		if p.Date.Before(g.Date) {
			g.Date = p.Date
		}
	}

	sort.Strings(order)
	result := make([]Point, 0, len(order))
	for _, key := range order {
		result = append(result, *grouped[key])
	}
	return result
}

// weekStart truncates a time to the Monday of its week.
func weekStart(t time.Time) time.Time {
	day := t.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// summarize computes the per-category totals over a series. The peak is
// the point with the highest total, earliest point winning ties. The
// average is rounded to one decimal place.
func summarize(series []Point) Summary {
	s := Summary{Total: decimal.Zero, Average: decimal.Zero, Points: len(series)}
	for i, p := range series {
		s.Total = s.Total.Add(p.Total)
		if i == 0 || p.Total.GreaterThan(s.Peak.Total) {
			s.Peak = p
		}
	}
	if len(series) > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(len(series)))).Round(1)
	}
	return s
}
