// Package buffer accumulates incoming records per category and drains them
// into persisted monthly aggregates, either on demand, on a dev-mode size
// threshold, or on a periodic timer.
package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/store"
)

const (
	// DevFlushInterval is the periodic flush cadence in dev mode.
	DevFlushInterval = 60 * time.Second
	// ProdFlushInterval is the periodic flush cadence otherwise.
	ProdFlushInterval = 300 * time.Second
)

// Options configures a Writer.
type Options struct {
	// Dev enables the eager per-category flush thresholds and the shorter
	// periodic interval.
	Dev bool
	// Interval overrides the periodic flush interval when positive.
	Interval time.Duration
	Logger   *slog.Logger
	// Now is the clock used for aggregate timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Writer is the in-process accumulation layer. Buffer contents are volatile:
// an abrupt termination drops unflushed records, so hosts should call Flush
// from their own shutdown sequence.
type Writer struct {
	store  *store.Store
	dev    bool
	logger *slog.Logger
	nowFn  func() time.Time

	mu      sync.Mutex
	buffers map[analytics.Category][]analytics.Record

	interval time.Duration
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWriter creates a writer flushing into st.
func NewWriter(st *store.Store, opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = ProdFlushInterval
		if opts.Dev {
			interval = DevFlushInterval
		}
	}
	return &Writer{
		store:    st,
		dev:      opts.Dev,
		logger:   logger,
		nowFn:    nowFn,
		buffers:  make(map[analytics.Category][]analytics.Record),
		interval: interval,
	}
}

// Track appends a record to the category's buffer. Records without an ID
// are assigned one for log correlation. In dev mode, reaching the
// category's threshold triggers an eager flush; a failed eager flush only
// logs, leaving the buffer intact for the next attempt.
func (w *Writer) Track(category analytics.Category, rec analytics.Record) {
	strategy, ok := analytics.Strategies[category]
	if !ok {
		w.logger.Warn("[Writer] Dropping record for unknown category", "category", category)
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	w.mu.Lock()
	w.buffers[category] = append(w.buffers[category], rec)
	size := len(w.buffers[category])
	w.mu.Unlock()

	w.logger.Debug("[Writer] Tracked record",
		"category", category, "record_id", rec.ID, "buffered", size)

	if w.dev && size >= strategy.DevFlushThreshold() {
		if err := w.Flush(category); err != nil {
			w.logger.Error("[Writer] Eager flush failed", "category", category, "error", err)
		}
	}
}

// Stats reports the current buffer length per category. Every known
// category is present, empty ones at zero.
func (w *Writer) Stats() map[analytics.Category]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := make(map[analytics.Category]int, len(analytics.Categories))
	for _, cat := range analytics.Categories {
		stats[cat] = len(w.buffers[cat])
	}
	return stats
}

// Clear drops all buffered records for every category.
func (w *Writer) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffers = make(map[analytics.Category][]analytics.Record)
}

// Flush drains the buffers of the given categories (all categories when
// none are given) into persisted monthly aggregates. Each category is
// flushed independently: a failure leaves that category's records buffered
// for a later retry and does not block the others. The returned error joins
// the per-category failures, if any.
//
// Merge semantics: when a month already has a persisted document, the new
// batch's total is added onto the persisted totalCount while every other
// field is recomputed from the new batch alone. Distributions therefore
// reflect the most recent flush, not the full month.
func (w *Writer) Flush(categories ...analytics.Category) error {
	if len(categories) == 0 {
		categories = analytics.Categories
	}

	var errs []error
	for _, cat := range categories {
		w.mu.Lock()
		snapshot := w.buffers[cat]
		taken := len(snapshot)
		w.mu.Unlock()
		if taken == 0 {
			continue
		}

		if err := w.flushRecords(cat, snapshot); err != nil {
			w.logger.Error("[Writer] Flush failed, keeping buffer for retry",
				"category", cat, "records", taken, "error", err)
			errs = append(errs, fmt.Errorf("flush %s: %w", cat, err))
			continue
		}

		// Drop only the flushed prefix; records tracked during the flush
		// stay for the next one. The buffer may have shrunk in the
		// meantime (Clear during our I/O), so never slice past its end.
		w.mu.Lock()
		if taken < len(w.buffers[cat]) {
			w.buffers[cat] = w.buffers[cat][taken:]
		} else {
			w.buffers[cat] = nil
		}
		remaining := len(w.buffers[cat])
		w.mu.Unlock()

		w.logger.Info("[Writer] Flushed buffer",
			"category", cat, "records", taken, "remaining", remaining)
	}
	return errors.Join(errs...)
}

// flushRecords writes one category's snapshot, month by month. Either every
// month persists or the whole snapshot is considered failed.
func (w *Writer) flushRecords(category analytics.Category, records []analytics.Record) error {
	groups := analytics.GroupByMonth(records)
	now := w.nowFn()

	for _, key := range analytics.SortedMonthKeys(groups) {
		agg := analytics.Aggregate(category, key, groups[key], now)

		existing, err := w.store.Get(category, key.Year, key.Month)
		if err != nil {
			return err
		}
		if existing != nil {
			agg.TotalCount = agg.TotalCount.Add(existing.Header.Decimal("totalCount"))
		}

		if _, err := w.store.Put(agg, nil); err != nil {
			return err
		}
	}
	return nil
}

// Start begins periodic flushing of all categories. Calling Start on a
// running writer is a no-op.
func (w *Writer) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("[Writer] Starting periodic flush", "interval", w.interval)

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.Flush(); err != nil {
					w.logger.Error("[Writer] Periodic flush failed", "error", err)
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the periodic flush. It does not drain pending records;
// explicit Flush is a separate, composable operation. Stopping a writer
// that is not running is a no-op.
func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	w.logger.Info("[Writer] Stopped periodic flush")
}
