// Package convert implements the batch path: query raw rows from the
// record store for a time range, aggregate them into monthly summaries and
// persist one document per month.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/records"
	"github.com/tinyland-inc/tinyland-analytics/internal/store"
)

// ErrNoRecordStore marks the precondition failure of running a conversion
// without a configured record store. Never retried automatically.
var ErrNoRecordStore = errors.New("no record store configured")

// Converter turns raw database rows into persisted monthly aggregates.
type Converter struct {
	store   *store.Store
	records records.Store
	logger  *slog.Logger
	nowFn   func() time.Time
}

// New creates a converter. A nil record store is allowed at construction;
// conversions then fail with ErrNoRecordStore.
func New(st *store.Store, rs records.Store, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{store: st, records: rs, logger: logger, nowFn: time.Now}
}

// Convert runs one category's conversion over [start, end]: query, map rows
// to records, bucket by month, aggregate with category extras, persist.
// Returns the written document paths in month order. Zero rows yield an
// empty result and no writes.
func (c *Converter) Convert(ctx context.Context, category analytics.Category, start, end time.Time) ([]string, error) {
	if c.records == nil {
		return nil, ErrNoRecordStore
	}
	template, ok := records.QueryFor(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	rows, err := c.records.Query(ctx, template, start, end)
	if err != nil {
		c.logger.Error("[Converter] Record query failed", "category", category, "error", err)
		return nil, fmt.Errorf("convert %s: %w", category, err)
	}

	recs := make([]analytics.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := mapRow(category, row)
		if err != nil {
			c.logger.Error("[Converter] Dropping malformed row", "category", category, "error", err)
			continue
		}
		recs = append(recs, rec)
	}

	groups := analytics.GroupByMonth(recs)
	now := c.nowFn()

	var paths []string
	for _, key := range analytics.SortedMonthKeys(groups) {
		monthRecords := groups[key]
		agg := analytics.Aggregate(category, key, monthRecords, now)
		overrides := extras(category, monthRecords)

		path, err := c.store.Put(agg, overrides)
		if err != nil {
			c.logger.Error("[Converter] Failed to persist month",
				"category", category, "month", key.String(), "error", err)
			return nil, fmt.Errorf("convert %s %s: %w", category, key.String(), err)
		}
		paths = append(paths, path)
	}

	c.logger.Info("[Converter] Conversion complete",
		"category", category, "rows", len(rows), "months", len(paths))
	return paths, nil
}

// ConvertAll runs the three conversions independently. A failure in one
// category is logged and does not abort the others; the result holds
// whatever subset succeeded.
func (c *Converter) ConvertAll(ctx context.Context, start, end time.Time) map[analytics.Category][]string {
	var mu sync.Mutex
	result := make(map[analytics.Category][]string)

	g, gctx := errgroup.WithContext(ctx)
	for _, category := range analytics.Categories {
		g.Go(func() error {
			paths, err := c.Convert(gctx, category, start, end)
			if err != nil {
				c.logger.Error("[Converter] Category conversion failed",
					"category", category, "error", err)
				return nil // partial success by design
			}
			mu.Lock()
			result[category] = paths
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// mapRow projects one raw row into a Record with category-specific
// metadata.
func mapRow(category analytics.Category, row records.Row) (analytics.Record, error) {
	switch category {
	case analytics.CategoryPageViews:
		ts, err := rowTime(row, "viewed_at")
		if err != nil {
			return analytics.Record{}, err
		}
		return analytics.Record{
			ID:        uuid.NewString(),
			Timestamp: ts,
			Value:     decimal.NewFromInt(1),
			Metadata: map[string]any{
				"path":      rowString(row, "path"),
				"sessionId": rowString(row, "session_id"),
				"referrer":  rowString(row, "referrer"),
			},
		}, nil

	case analytics.CategoryEvents:
		ts, err := rowTime(row, "occurred_at")
		if err != nil {
			return analytics.Record{}, err
		}
		participants := rowInt64(row, "participants")
		return analytics.Record{
			ID:        uuid.NewString(),
			Timestamp: ts,
			Value:     decimal.NewFromInt(participants),
			Metadata: map[string]any{
				"eventType":    rowString(row, "event_type"),
				"participants": participants,
			},
		}, nil

	case analytics.CategoryUserActivity:
		ts, err := rowTime(row, "occurred_at")
		if err != nil {
			return analytics.Record{}, err
		}
		return analytics.Record{
			ID:        uuid.NewString(),
			Timestamp: ts,
			Value:     decimal.NewFromInt(1),
			Metadata: map[string]any{
				"activityType": rowString(row, "activity_type"),
				"userId":       rowString(row, "user_id"),
			},
		}, nil
	}
	return analytics.Record{}, fmt.Errorf("unknown category %q", category)
}

// extras computes the category-specific override fields persisted next to
// the base aggregate.
func extras(category analytics.Category, recs []analytics.Record) map[string]any {
	switch category {
	case analytics.CategoryPageViews:
		return map[string]any{
			"uniquePaths":    countDistinct(recs, "path"),
			"uniqueSessions": countDistinct(recs, "sessionId"),
		}
	case analytics.CategoryEvents:
		total := decimal.Zero
		for _, r := range recs {
			total = total.Add(r.Value)
		}
		avg := decimal.Zero
		if len(recs) > 0 {
			avg = total.Div(decimal.NewFromInt(int64(len(recs)))).Round(0)
		}
		return map[string]any{"averageParticipants": avg}
	case analytics.CategoryUserActivity:
		return map[string]any{"uniqueUsers": countDistinct(recs, "userId")}
	}
	return nil
}

func countDistinct(recs []analytics.Record, metaKey string) int {
	seen := make(map[string]struct{})
	for _, r := range recs {
		if v := r.MetaString(metaKey); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func rowString(row records.Row, col string) string {
	s, _ := row[col].(string)
	return s
}

func rowInt64(row records.Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// rowTime reads a timestamp column. Postgres yields time.Time; sqlite may
// yield a string.
func rowTime(row records.Row, col string) (time.Time, error) {
	switch v := row[col].(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q in column %s", v, col)
	}
	return time.Time{}, fmt.Errorf("missing timestamp column %s", col)
}
