package records

import (
	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
)

// The three fixed query shapes issued by the batch converter. Each takes
// [start, end] bounds and returns rows in timestamp order.
const (
	queryPageViews = `
		SELECT viewed_at, path, session_id, referrer
		FROM page_views
		WHERE viewed_at >= $1 AND viewed_at <= $2
		ORDER BY viewed_at ASC`

	queryEvents = `
		SELECT occurred_at, event_type, participants
		FROM events
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at ASC`

	queryUserActivity = `
		SELECT occurred_at, activity_type, user_id
		FROM user_activity
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at ASC`
)

// QueryFor returns the query template for a category.
func QueryFor(category analytics.Category) (string, bool) {
	q, ok := queriesByCategory[category]
	return q, ok
}

var queriesByCategory = map[analytics.Category]string{
	analytics.CategoryPageViews:    queryPageViews,
	analytics.CategoryEvents:       queryEvents,
	analytics.CategoryUserActivity: queryUserActivity,
}
