package analytics

import (
	"sort"
)

// Category identifies one of the fixed analytics kinds.
type Category string

const (
	CategoryPageViews    Category = "page-views"
	CategoryEvents       Category = "events"
	CategoryUserActivity Category = "user-activity"
)

// Categories lists every known category in canonical order.
var Categories = []Category{CategoryPageViews, CategoryEvents, CategoryUserActivity}

// ValidCategory reports whether c is a registered category.
func ValidCategory(c Category) bool {
	_, ok := Strategies[c]
	return ok
}

// topPathsLimit bounds the per-month path ranking for page views.
const topPathsLimit = 10

// Strategy bundles the per-category behavior: breakdown extraction and the
// dev-mode eager-flush threshold. To add a category: implement Strategy and
// register it in Strategies. No switch statements need to be modified
// anywhere else in the codebase.
type Strategy interface {
	// DevFlushThreshold is the buffer size that triggers an eager flush in
	// dev mode. Production imposes no implicit cap.
	DevFlushThreshold() int

	// Breakdown computes the category-specific distribution from one month
	// of records. It returns the header field name and its value: a ranked
	// []PathCount for page views, a count map for the other categories.
	Breakdown(records []Record) (field string, value any)
}

// Strategies is the registry of all per-category strategies.
var Strategies = map[Category]Strategy{
	CategoryPageViews:    pageViewStrategy{},
	CategoryEvents:       eventStrategy{},
	CategoryUserActivity: userActivityStrategy{},
}

// PathCount is one entry of the page-view path ranking.
type PathCount struct {
	Path  string `yaml:"path"`
	Count int64  `yaml:"count"`
}

type pageViewStrategy struct{}

func (pageViewStrategy) DevFlushThreshold() int { return 10 }

func (pageViewStrategy) Breakdown(records []Record) (string, any) {
	counts := countMeta(records, "path")
	paths := make([]PathCount, 0, len(counts))
	for path, n := range counts {
		paths = append(paths, PathCount{Path: path, Count: n})
	}
	// Descending by count; equal counts ordered by path for determinism.
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Count != paths[j].Count {
			return paths[i].Count > paths[j].Count
		}
		return paths[i].Path < paths[j].Path
	})
	if len(paths) > topPathsLimit {
		paths = paths[:topPathsLimit]
	}
	return "topPaths", paths
}

type eventStrategy struct{}

func (eventStrategy) DevFlushThreshold() int { return 5 }

func (eventStrategy) Breakdown(records []Record) (string, any) {
	return "eventTypes", countMeta(records, "eventType")
}

type userActivityStrategy struct{}

func (userActivityStrategy) DevFlushThreshold() int { return 10 }

func (userActivityStrategy) Breakdown(records []Record) (string, any) {
	return "activityTypes", countMeta(records, "activityType")
}

// countMeta tallies records by a string metadata field.
// Records missing the field land in the "unknown" bucket.
func countMeta(records []Record, key string) map[string]int64 {
	counts := make(map[string]int64)
	for _, r := range records {
		v := r.MetaString(key)
		if v == "" {
			v = "unknown"
		}
		counts[v]++
	}
	return counts
}
