package document

import (
	"fmt"
	"strings"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
)

var categoryTitles = map[analytics.Category]string{
	analytics.CategoryPageViews:    "Page Views",
	analytics.CategoryEvents:       "Events",
	analytics.CategoryUserActivity: "User Activity",
}

// Render produces the human-readable Markdown body for a monthly aggregate:
// title, summary, per-day breakdown and a fixed trailer. The body is
// regenerated on every write and never parsed back.
func Render(agg analytics.MonthlyAggregate) string {
	title := categoryTitles[agg.Category]
	if title == "" {
		title = string(agg.Category)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - %04d-%02d\n\n", title, agg.Year, int(agg.Month))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total: %s\n", agg.TotalCount.String())
	fmt.Fprintf(&b, "- Active days: %d\n", agg.UniqueCount)
	fmt.Fprintf(&b, "- Daily average: %s\n", agg.AverageDaily.String())
	if agg.PeakDay != "" {
		fmt.Fprintf(&b, "- Peak day: %s\n", agg.PeakDay)
		fmt.Fprintf(&b, "- Peak hour: %02d:00\n", agg.PeakHour)
	}
	b.WriteString("\n## Daily Breakdown\n")

	for _, day := range agg.Days {
		fmt.Fprintf(&b, "\n### %s\n\n", day.Date)
		fmt.Fprintf(&b, "- Total: %s\n", day.Total.String())
		fmt.Fprintf(&b, "- Records: %d\n", day.Count)
		fmt.Fprintf(&b, "- Average: %s\n", day.Average.String())
	}

	b.WriteString("\n---\n\n*Generated by tinyland-analytics. Do not edit by hand.*\n")
	return b.String()
}
