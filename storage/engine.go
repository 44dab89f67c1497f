package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
)

// schemaTimeout bounds schema-creation and view-refresh DDL, grounded on
// the same fixed-timeout pattern the reference schema module uses for its
// own DDL batch.
const schemaTimeout = 60 * time.Second

// Engine owns the single embedded analytical-engine connection. Spec §5
// requires every hot-table reader and writer to serialize on one mutex
// because the engine is embedded, not shared across connections — Engine
// enforces that by gating every statement through mu.
type Engine struct {
	db      *sql.DB
	dataDir string
	logger  zerolog.Logger

	mu sync.Mutex
}

// Open creates (or attaches to) the embedded engine rooted at dataDir and
// ensures the hot table and unified view exist.
func Open(ctx context.Context, dataDir string, logger zerolog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open embedded engine: %w", err)
	}
	db.SetMaxOpenConns(1)

	e := &Engine{db: db, dataDir: dataDir, logger: logger.With().Str("component", "storage").Logger()}

	if err := e.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := e.RefreshView(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the underlying connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// DataDir returns the root directory partitions live under.
func (e *Engine) DataDir() string {
	return e.dataDir
}

// exec runs a statement under the single-writer lock.
func (e *Engine) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.ExecContext(ctx, query, args...)
}

// query runs a read statement under the same lock — the embedded engine
// is not safe for concurrent statements from multiple connections, so
// queries serialize alongside writers per spec §5's discipline table.
func (e *Engine) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.QueryContext(ctx, query, args...)
}

// Query runs a read-only statement against events_all (or any other
// query runners compose) under the engine's single-writer lock. This is
// the entry point the query-runner package uses — it never holds a raw
// *sql.DB reference of its own, per spec §5's "engine is embedded, not
// shared across connections" discipline.
func (e *Engine) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return e.query(ctx, query, args...)
}

// QueryRow runs a single-row read-only statement under the same lock.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.QueryRowContext(ctx, query, args...)
}

func (e *Engine) createSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS events (\n")
	colDefs := []string{
		"site_id VARCHAR", "visitor_id VARCHAR", "timestamp TIMESTAMP", "event_name VARCHAR", "pathname VARCHAR",
		"hostname VARCHAR", "referrer VARCHAR", "referrer_source VARCHAR",
		"utm_source VARCHAR", "utm_medium VARCHAR", "utm_campaign VARCHAR", "utm_content VARCHAR", "utm_term VARCHAR",
		"browser VARCHAR", "browser_version VARCHAR", "os VARCHAR", "os_version VARCHAR", "device_type VARCHAR", "screen_size VARCHAR",
		"country_code VARCHAR", "region VARCHAR", "city VARCHAR",
		"props VARCHAR",
		"revenue_amount DECIMAL(12,2)", "revenue_currency VARCHAR",
	}
	b.WriteString("    " + strings.Join(colDefs, ",\n    "))
	b.WriteString("\n)")

	if _, err := e.exec(ctx, b.String()); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// RefreshView (re)defines events_all as the union-by-name of the hot
// table and every cold columnar file, per spec §4.7. Called at startup
// and after every successful flush.
func (e *Engine) RefreshView(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	pattern := filepath.Join(e.dataDir, "events", "site_id=*", "date=*", "*.parquet")
	matches, _ := filepath.Glob(pattern)

	if _, err := e.exec(ctx, "DROP VIEW IF EXISTS events_all"); err != nil {
		return fmt.Errorf("drop events_all: %w", err)
	}

	var createSQL string
	if len(matches) == 0 {
		createSQL = "CREATE VIEW events_all AS SELECT * FROM events"
	} else {
		createSQL = fmt.Sprintf(
			"CREATE VIEW events_all AS SELECT * FROM events UNION ALL BY NAME SELECT * FROM read_parquet('%s', union_by_name=true)",
			pattern,
		)
	}
	if _, err := e.exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create events_all: %w", err)
	}
	return nil
}
