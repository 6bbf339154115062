package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidCategory(t *testing.T) {
	require.True(t, ValidCategory(CategoryPageViews))
	require.True(t, ValidCategory(CategoryEvents))
	require.True(t, ValidCategory(CategoryUserActivity))
	require.False(t, ValidCategory("clicks"))
	require.False(t, ValidCategory(""))
}

func TestPageViewBreakdown_RanksAndTruncates(t *testing.T) {
	var records []Record
	for i := 0; i < 3; i++ {
		records = append(records, rec("2026-01-05T10:00:00Z", 1, map[string]any{"path": "/home"}))
	}
	for i := 0; i < 2; i++ {
		records = append(records, rec("2026-01-05T11:00:00Z", 1, map[string]any{"path": "/about"}))
	}
	records = append(records, rec("2026-01-05T12:00:00Z", 1, nil)) // no path

	field, value := Strategies[CategoryPageViews].Breakdown(records)
	require.Equal(t, "topPaths", field)

	paths := value.([]PathCount)
	require.Equal(t, []PathCount{
		{Path: "/home", Count: 3},
		{Path: "/about", Count: 2},
		{Path: "unknown", Count: 1},
	}, paths)
}

func TestPageViewBreakdown_TopNLimit(t *testing.T) {
	var records []Record
	for i := 0; i < 15; i++ {
		records = append(records, rec("2026-01-05T10:00:00Z", 1, map[string]any{"path": string(rune('a' + i))}))
	}

	_, value := Strategies[CategoryPageViews].Breakdown(records)
	require.Len(t, value.([]PathCount), 10)
}

func TestEventBreakdown_CountsTypes(t *testing.T) {
	records := []Record{
		rec("2026-01-05T10:00:00Z", 20, map[string]any{"eventType": "meetup"}),
		rec("2026-01-06T10:00:00Z", 30, map[string]any{"eventType": "meetup"}),
		rec("2026-01-07T10:00:00Z", 10, map[string]any{"eventType": "webinar"}),
		rec("2026-01-08T10:00:00Z", 5, nil),
	}

	field, value := Strategies[CategoryEvents].Breakdown(records)
	require.Equal(t, "eventTypes", field)
	require.Equal(t, map[string]int64{"meetup": 2, "webinar": 1, "unknown": 1}, value)
}

func TestDevFlushThresholds(t *testing.T) {
	require.Equal(t, 10, Strategies[CategoryPageViews].DevFlushThreshold())
	require.Equal(t, 5, Strategies[CategoryEvents].DevFlushThreshold())
	require.Equal(t, 10, Strategies[CategoryUserActivity].DevFlushThreshold())
}
