package query

import (
	"math"
	"sort"
	"time"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/document"
)

// Item is one ranked entry of a category breakdown, with its share of the
// grand total in percent (one decimal place).
type Item struct {
	Name    string
	Count   int64
	Percent float64
}

// breakdown header field per category.
var breakdownFields = map[analytics.Category]string{
	analytics.CategoryPageViews:    "topPaths",
	analytics.CategoryEvents:       "eventTypes",
	analytics.CategoryUserActivity: "activityTypes",
}

// TopItems accumulates the category's breakdown maps across every month
// overlapping the optional range, sums the counts, and returns the top
// `limit` items by count.
func (e *Engine) TopItems(category analytics.Category, limit int, start, end *time.Time) ([]Item, error) {
	field, ok := breakdownFields[category]
	if !ok {
		return nil, nil
	}

	entries, err := e.store.List(category)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, entry := range entries {
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
		accumulate(counts, doc.Header, field, category)
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	items := make([]Item, 0, len(counts))
	for name, n := range counts {
		items = append(items, Item{Name: name, Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	for i := range items {
		if total > 0 {
			items[i].Percent = math.Round(float64(items[i].Count)/float64(total)*1000) / 10
		}
	}
	return items, nil
}

// accumulate folds one document's breakdown field into the running counts.
// Page views store a ranked list of {path, count} entries; the other
// categories store plain count maps.
func accumulate(counts map[string]int64, header document.Header, field string, category analytics.Category) {
	if category == analytics.CategoryPageViews {
		for _, raw := range header.List(field) {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["path"].(string)
			if name == "" {
				continue
			}
			counts[name] += document.Header(entry).Decimal("count").IntPart()
		}
		return
	}
	for name, n := range header.CountMap(field) {
		counts[name] += n
	}
}
