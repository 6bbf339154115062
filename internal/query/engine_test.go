package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/store"
)

func seedMonth(t *testing.T, st *store.Store, cat analytics.Category, year int, month time.Month, total int64, overrides map[string]any) {
	t.Helper()
	agg := analytics.MonthlyAggregate{
		Category:     cat,
		Year:         year,
		Month:        month,
		TotalCount:   decimal.NewFromInt(total),
		UniqueCount:  1,
		AverageDaily: decimal.NewFromInt(total),
		PeakDay:      time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		LastUpdated:  time.Date(year, month, 28, 0, 0, 0, 0, time.UTC),
	}
	_, err := st.Put(agg, overrides)
	require.NoError(t, err)
}

func TestQuery_SummaryAndSeries(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2025, time.December, 100, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.January, 300, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.February, 200, nil)

	e := NewEngine(st, nil)
	results, err := e.Query(Filter{Categories: []analytics.Category{analytics.CategoryPageViews}})
	require.NoError(t, err)

	res, ok := results[analytics.CategoryPageViews]
	require.True(t, ok)
	require.Len(t, res.Series, 3)
	// Ascending month order.
	require.Equal(t, "2025-12", res.Series[0].Label)
	require.Equal(t, "2026-02", res.Series[2].Label)

	require.True(t, decimal.NewFromInt(600).Equal(res.Summary.Total))
	require.True(t, decimal.NewFromInt(200).Equal(res.Summary.Average))
	require.Equal(t, "2026-01", res.Summary.Peak.Label)
	require.Equal(t, 3, res.Summary.Points)
}

func TestQuery_DateRangeFilter(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	seedMonth(t, st, analytics.CategoryEvents, 2025, time.November, 10, nil)
	seedMonth(t, st, analytics.CategoryEvents, 2026, time.January, 20, nil)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(st, nil)
	results, err := e.Query(Filter{
		Categories: []analytics.Category{analytics.CategoryEvents},
		Start:      &start,
	})
	require.NoError(t, err)

	res := results[analytics.CategoryEvents]
	require.Len(t, res.Series, 1)
	require.Equal(t, "2026-01", res.Series[0].Label)
}

func TestQuery_RegroupByYear(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2025, time.November, 40, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2025, time.December, 60, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.January, 10, nil)

	e := NewEngine(st, nil)
	results, err := e.Query(Filter{
		Categories: []analytics.Category{analytics.CategoryPageViews},
		GroupBy:    "year",
	})
	require.NoError(t, err)

	series := results[analytics.CategoryPageViews].Series
	require.Len(t, series, 2)
	require.Equal(t, "2025", series[0].Label)
	require.True(t, decimal.NewFromInt(100).Equal(series[0].Total))
	require.Equal(t, "2026", series[1].Label)
	require.True(t, decimal.NewFromInt(10).Equal(series[1].Total))
}

func TestQuery_RegroupByWeekVariants(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.January, 40, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.February, 10, nil)

	e := NewEngine(st, nil)

	// Calendar weeks are labelled by their Monday.
	results, err := e.Query(Filter{
		Categories: []analytics.Category{analytics.CategoryPageViews},
		GroupBy:    "week",
	})
	require.NoError(t, err)
	series := results[analytics.CategoryPageViews].Series
	require.Len(t, series, 2)
	require.Equal(t, "2025-12-29", series[0].Label)
	require.Equal(t, "2026-01-26", series[1].Label)

	// Week-of-year uses ISO year-week labels.
	results, err = e.Query(Filter{
		Categories: []analytics.Category{analytics.CategoryPageViews},
		GroupBy:    "week-of-year",
	})
	require.NoError(t, err)
	series = results[analytics.CategoryPageViews].Series
	require.Len(t, series, 2)
	require.Equal(t, "2026-W01", series[0].Label)
	require.Equal(t, "2026-W05", series[1].Label)
}

func TestQuery_EmptyCategoryAbsent(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	seedMonth(t, st, analytics.CategoryPageViews, 2026, time.January, 10, nil)

	e := NewEngine(st, nil)
	results, err := e.Query(Filter{})
	require.NoError(t, err)

	_, hasEvents := results[analytics.CategoryEvents]
	require.False(t, hasEvents)
	_, hasViews := results[analytics.CategoryPageViews]
	require.True(t, hasViews)
}

func TestTrend_EmptyWindowsAreStable(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	e := NewEngine(st, nil)

	trend, err := e.Trend(analytics.CategoryPageViews, 30)
	require.NoError(t, err)
	require.Equal(t, TrendStable, trend.Direction)
	require.Equal(t, 0.0, trend.PercentageChange)
	require.True(t, trend.CurrentTotal.IsZero())
	require.True(t, trend.PreviousTotal.IsZero())
}

func TestTrend_UpDownStable(t *testing.T) {
	tests := []struct {
		name          string
		current, prev int64
		wantDirection string
		wantChange    float64
	}{
		{"doubling is up", 200, 100, TrendUp, 100.0},
		{"halving is down", 50, 100, TrendDown, -50.0},
		{"small move is stable", 104, 100, TrendStable, 4.0},
		{"no previous data is stable", 100, 0, TrendStable, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.New(t.TempDir(), nil, nil)
			e := NewEngine(st, nil)
			// Fixed clock: windows are [Feb 1, Mar 1) and [Mar 1, Apr 1).
			e.nowFn = func() time.Time {
				return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			}

			if tc.current > 0 {
				seedMonth(t, st, analytics.CategoryEvents, 2026, time.March, tc.current, nil)
			}
			if tc.prev > 0 {
				seedMonth(t, st, analytics.CategoryEvents, 2026, time.February, tc.prev, nil)
			}

			trend, err := e.Trend(analytics.CategoryEvents, 31)
			require.NoError(t, err)
			require.Equal(t, tc.wantDirection, trend.Direction)
			require.Equal(t, tc.wantChange, trend.PercentageChange)
		})
	}
}

func TestTopItems_AccumulatesAndRanks(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)

	put := func(year int, month time.Month, types map[string]int64) {
		agg := analytics.MonthlyAggregate{
			Category:       analytics.CategoryEvents,
			Year:           year,
			Month:          month,
			TotalCount:     decimal.NewFromInt(1),
			UniqueCount:    1,
			AverageDaily:   decimal.NewFromInt(1),
			LastUpdated:    time.Date(year, month, 28, 0, 0, 0, 0, time.UTC),
			BreakdownField: "eventTypes",
			Breakdown:      types,
		}
		_, err := st.Put(agg, nil)
		require.NoError(t, err)
	}
	put(2026, time.January, map[string]int64{"meetup": 6, "webinar": 2})
	put(2026, time.February, map[string]int64{"meetup": 4, "social": 8})

	e := NewEngine(st, nil)
	items, err := e.TopItems(analytics.CategoryEvents, 2, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []Item{
		{Name: "meetup", Count: 10, Percent: 50.0},
		{Name: "social", Count: 8, Percent: 40.0},
	}, items)
}

func TestTopItems_PageViewsFromRankedList(t *testing.T) {
	st := store.New(t.TempDir(), nil, nil)
	agg := analytics.MonthlyAggregate{
		Category:       analytics.CategoryPageViews,
		Year:           2026,
		Month:          time.January,
		TotalCount:     decimal.NewFromInt(30),
		UniqueCount:    1,
		AverageDaily:   decimal.NewFromInt(30),
		LastUpdated:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		BreakdownField: "topPaths",
		Breakdown: []analytics.PathCount{
			{Path: "/home", Count: 20},
			{Path: "/about", Count: 10},
		},
	}
	_, err := st.Put(agg, nil)
	require.NoError(t, err)

	e := NewEngine(st, nil)
	items, err := e.TopItems(analytics.CategoryPageViews, 10, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []Item{
		{Name: "/home", Count: 20, Percent: 66.7},
		{Name: "/about", Count: 10, Percent: 33.3},
	}, items)
}
