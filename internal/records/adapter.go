// Package records adapts a relational database into the record store the
// batch converter reads from. The adapter exposes a single operation:
// execute one of the fixed query templates with [start, end] bounds and
// return the raw rows in order.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver for dev setups
)

const connectPingTimeout = 5 * time.Second

// Row is one raw analytics row keyed by column name.
type Row map[string]any

// Store is the record-store interface the converter consumes.
type Store interface {
	Query(ctx context.Context, template string, start, end time.Time) ([]Row, error)
}

// SQLAdapter implements Store over database/sql. Supported drivers are
// "postgres" and "sqlite3".
type SQLAdapter struct {
	db *sql.DB
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string, maxOpenConns, maxIdleConns int) (*SQLAdapter, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	slog.Info("[Records] Connected",
		"driver", driver, "max_open_conns", maxOpenConns, "max_idle_conns", maxIdleConns)
	return &SQLAdapter{db: db}, nil
}

// NewSQLAdapter wraps an existing connection. Used by tests and by callers
// sharing one pool.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Query runs a template with the time bounds and scans every row into a
// generic column map. []byte column values are converted to string.
func (a *SQLAdapter) Query(ctx context.Context, template string, start, end time.Time) ([]Row, error) {
	rows, err := a.db.QueryContext(ctx, template, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return result, nil
}

// DB returns the underlying *sql.DB so the host can run migrations against
// the same connection.
func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

// Close closes the database connection.
func (a *SQLAdapter) Close() error {
	return a.db.Close()
}
