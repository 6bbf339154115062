// Package store resolves logical (category, year, month) keys to document
// paths under a base directory and performs encode-on-write / decode-on-read
// through the document codec. Actual byte I/O goes through a Backend.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
	"github.com/tinyland-inc/tinyland-analytics/internal/document"
)

// DefaultBaseDir is the storage root used when configuration does not
// override it.
const DefaultBaseDir = "./data/analytics"

// Extension of every persisted document.
const Extension = ".md"

var monthFileRe = regexp.MustCompile(`^(\d{2})\.md$`)
var yearDirRe = regexp.MustCompile(`^\d{4}$`)

// Store is the document store facade.
type Store struct {
	base    string
	backend Backend
	logger  *slog.Logger
}

// New creates a store rooted at base. A nil backend defaults to the local
// filesystem; a nil logger defaults to slog.Default.
func New(base string, backend Backend, logger *slog.Logger) *Store {
	if base == "" {
		base = DefaultBaseDir
	}
	if backend == nil {
		backend = OSBackend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{base: base, backend: backend, logger: logger}
}

// Path returns the canonical document path for a key:
// <base>/<category>/<year>/<MM>.md
func (s *Store) Path(category analytics.Category, year int, month time.Month) string {
	return filepath.Join(s.base, string(category), fmt.Sprintf("%04d", year), fmt.Sprintf("%02d%s", int(month), Extension))
}

// Put encodes an aggregate and writes its document, creating the
// category/year directory first. Returns the resolved path.
func (s *Store) Put(agg analytics.MonthlyAggregate, overrides map[string]any) (string, error) {
	dir := filepath.Join(s.base, string(agg.Category), fmt.Sprintf("%04d", agg.Year))
	if err := s.backend.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("failed to create document directory %s: %w", dir, err)
	}

	data, err := document.Encode(agg, overrides)
	if err != nil {
		return "", err
	}

	path := s.Path(agg.Category, agg.Year, agg.Month)
	if err := s.backend.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", path, err)
	}

	s.logger.Debug("[Store] Wrote document",
		"category", agg.Category, "year", agg.Year, "month", int(agg.Month), "path", path)
	return path, nil
}

// StoredAggregate is a document read back from the store: the decoded
// header plus the raw body after it.
type StoredAggregate struct {
	Category analytics.Category
	Year     int
	Month    time.Month
	Header   document.Header
	Body     string
	Path     string
}

// Get reads the document for one key. A missing file, or a file without a
// frontmatter header, yields (nil, nil).
func (s *Store) Get(category analytics.Category, year int, month time.Month) (*StoredAggregate, error) {
	path := s.Path(category, year, month)
	data, err := s.backend.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	header, body, err := document.Decode(data)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}

	return &StoredAggregate{
		Category: category,
		Year:     year,
		Month:    month,
		Header:   header,
		Body:     body,
		Path:     path,
	}, nil
}

// Entry identifies one persisted document.
type Entry struct {
	Category analytics.Category
	Year     int
	Month    time.Month
}

// List enumerates persisted documents for one category, or for all
// categories when category is empty. Results are sorted most recent first.
// Missing category directories contribute zero results.
func (s *Store) List(category analytics.Category) ([]Entry, error) {
	categories := analytics.Categories
	if category != "" {
		categories = []analytics.Category{category}
	}

	var entries []Entry
	for _, cat := range categories {
		catEntries, err := s.listCategory(cat)
		if err != nil {
			return nil, err
		}
		entries = append(entries, catEntries...)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year > entries[j].Year
		}
		if entries[i].Month != entries[j].Month {
			return entries[i].Month > entries[j].Month
		}
		return entries[i].Category < entries[j].Category
	})
	return entries, nil
}

func (s *Store) listCategory(category analytics.Category) ([]Entry, error) {
	catDir := filepath.Join(s.base, string(category))
	years, err := s.backend.ReadDir(catDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", catDir, err)
	}

	var entries []Entry
	for _, yearEntry := range years {
		if !yearEntry.IsDir() || !yearDirRe.MatchString(yearEntry.Name()) {
			continue
		}
		year, _ := strconv.Atoi(yearEntry.Name())

		yearDir := filepath.Join(catDir, yearEntry.Name())
		months, err := s.backend.ReadDir(yearDir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", yearDir, err)
		}

		for _, monthEntry := range months {
			if monthEntry.IsDir() {
				continue
			}
			m := monthFileRe.FindStringSubmatch(monthEntry.Name())
			if m == nil {
				continue
			}
			month, _ := strconv.Atoi(m[1])
			if month < 1 || month > 12 {
				continue
			}
			entries = append(entries, Entry{Category: category, Year: year, Month: time.Month(month)})
		}
	}
	return entries, nil
}
