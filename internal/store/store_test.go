package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
)

func monthAgg(cat analytics.Category, year int, month time.Month, total int64) analytics.MonthlyAggregate {
	return analytics.MonthlyAggregate{
		Category:     cat,
		Year:         year,
		Month:        month,
		TotalCount:   decimal.NewFromInt(total),
		UniqueCount:  1,
		AverageDaily: decimal.NewFromInt(total),
		PeakDay:      time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		LastUpdated:  time.Date(year, month, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_PutThenGet(t *testing.T) {
	st := New(t.TempDir(), nil, nil)

	path, err := st.Put(monthAgg(analytics.CategoryPageViews, 2026, time.January, 30), map[string]any{"uniquePaths": 3})
	require.NoError(t, err)
	require.Equal(t, st.Path(analytics.CategoryPageViews, 2026, time.January), path)
	require.FileExists(t, path)

	doc, err := st.Get(analytics.CategoryPageViews, 2026, time.January)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.True(t, decimal.NewFromInt(30).Equal(doc.Header.Decimal("totalCount")))
	require.Equal(t, 3, doc.Header.Int("uniquePaths"))
	require.Contains(t, doc.Body, "## Summary")
}

func TestStore_GetMissingIsNil(t *testing.T) {
	st := New(t.TempDir(), nil, nil)

	doc, err := st.Get(analytics.CategoryEvents, 2026, time.May)
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestStore_GetHeaderlessIsNil(t *testing.T) {
	base := t.TempDir()
	st := New(base, nil, nil)

	dir := filepath.Join(base, string(analytics.CategoryEvents), "2026")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "05.md"), []byte("# no frontmatter\n"), 0o644))

	doc, err := st.Get(analytics.CategoryEvents, 2026, time.May)
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestStore_PutOverwrites(t *testing.T) {
	st := New(t.TempDir(), nil, nil)

	_, err := st.Put(monthAgg(analytics.CategoryEvents, 2026, time.March, 10), nil)
	require.NoError(t, err)
	_, err = st.Put(monthAgg(analytics.CategoryEvents, 2026, time.March, 99), nil)
	require.NoError(t, err)

	doc, err := st.Get(analytics.CategoryEvents, 2026, time.March)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(99).Equal(doc.Header.Decimal("totalCount")))
}

func TestStore_ListSortedDescending(t *testing.T) {
	st := New(t.TempDir(), nil, nil)

	for _, m := range []struct {
		cat   analytics.Category
		year  int
		month time.Month
	}{
		{analytics.CategoryPageViews, 2025, time.December},
		{analytics.CategoryPageViews, 2026, time.February},
		{analytics.CategoryPageViews, 2026, time.January},
		{analytics.CategoryEvents, 2026, time.March},
	} {
		_, err := st.Put(monthAgg(m.cat, m.year, m.month, 1), nil)
		require.NoError(t, err)
	}

	entries, err := st.List(analytics.CategoryPageViews)
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{analytics.CategoryPageViews, 2026, time.February},
		{analytics.CategoryPageViews, 2026, time.January},
		{analytics.CategoryPageViews, 2025, time.December},
	}, entries)

	all, err := st.List("")
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, Entry{analytics.CategoryEvents, 2026, time.March}, all[0])

	// Idempotent without intervening writes.
	again, err := st.List("")
	require.NoError(t, err)
	require.Equal(t, all, again)
}

func TestStore_ListMissingCategoryIsEmpty(t *testing.T) {
	st := New(t.TempDir(), nil, nil)

	entries, err := st.List(analytics.CategoryUserActivity)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStore_ListFiltersJunk(t *testing.T) {
	base := t.TempDir()
	st := New(base, nil, nil)

	catDir := filepath.Join(base, string(analytics.CategoryPageViews))
	require.NoError(t, os.MkdirAll(filepath.Join(catDir, "2026"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(catDir, "drafts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(catDir, "20x6"), 0o755))

	yearDir := filepath.Join(catDir, "2026")
	for name, content := range map[string]string{
		"01.md":     "---\ntype: \"page-views\"\n---\n\nbody\n",
		"1.md":      "junk",
		"13.md":     "junk",
		"01.md.bak": "junk",
		"notes.txt": "junk",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(yearDir, name), []byte(content), 0o644))
	}

	entries, err := st.List(analytics.CategoryPageViews)
	require.NoError(t, err)
	require.Equal(t, []Entry{{analytics.CategoryPageViews, 2026, time.January}}, entries)
}

type failingBackend struct {
	OSBackend
	failWrites bool
	failReads  bool
}

func (b failingBackend) WriteFile(path string, data []byte) error {
	if b.failWrites {
		return errors.New("disk full")
	}
	return b.OSBackend.WriteFile(path, data)
}

func (b failingBackend) ReadFile(path string) ([]byte, error) {
	if b.failReads {
		return nil, errors.New("read error")
	}
	return b.OSBackend.ReadFile(path)
}

func TestStore_PutSurfacesBackendErrors(t *testing.T) {
	st := New(t.TempDir(), failingBackend{failWrites: true}, nil)

	_, err := st.Put(monthAgg(analytics.CategoryEvents, 2026, time.March, 1), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestStore_GetDistinguishesRealErrors(t *testing.T) {
	st := New(t.TempDir(), failingBackend{failReads: true}, nil)

	_, err := st.Get(analytics.CategoryEvents, 2026, time.March)
	require.Error(t, err)
	require.False(t, errors.Is(err, fs.ErrNotExist))
}
