package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/event"
	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/privacy"
)

// flushTimeout bounds one flush's DB work; the caller (the flush
// supervisor, component M) applies its own shutdown-time bound on top.
const flushTimeout = 30 * time.Second

// Invalidator is the subset of the query-result cache a Writer needs —
// just enough to drop every cached entry once a flush changes which rows
// events_all resolves to (spec §4.10).
type Invalidator interface {
	Invalidate()
}

// Writer implements the partitioned columnar writer, spec §4.6: drain the
// buffer, bulk-insert into the hot table, export one new columnar file per
// touched partition, truncate the hot table, and refresh the unified view.
type Writer struct {
	engine *Engine
	buf    *buffer.Buffer
	cache  Invalidator
}

// NewWriter ties a Writer to the engine and buffer it flushes between. cache
// may be nil, in which case a successful flush simply skips invalidation.
func NewWriter(engine *Engine, buf *buffer.Buffer, cache Invalidator) *Writer {
	return &Writer{engine: engine, buf: buf, cache: cache}
}

// Flush implements the seven-step algorithm in spec §4.6. On any failure
// between steps 3 and 5 the drained batch is restored to the front of the
// buffer before the error is returned — spec invariant P4.
func (w *Writer) Flush(ctx context.Context) error {
	drained := w.buf.Drain()
	if len(drained) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := w.bulkInsert(ctx, drained); err != nil {
		w.buf.Restore(drained)
		return mmerr.Wrap(mmerr.StorageFailure, "bulk insert into hot table failed", err)
	}

	partitions := distinctPartitions(drained)
	for _, p := range partitions {
		if err := w.exportPartition(ctx, p.siteID, p.date); err != nil {
			w.buf.Restore(drained)
			return mmerr.Wrap(mmerr.StorageFailure, fmt.Sprintf("export partition site_id=%s date=%s failed", p.siteID, p.date), err)
		}
	}

	if _, err := w.engine.exec(ctx, "DELETE FROM events"); err != nil {
		w.buf.Restore(drained)
		return mmerr.Wrap(mmerr.StorageFailure, "truncate hot table failed", err)
	}

	if err := w.engine.RefreshView(ctx); err != nil {
		w.buf.Restore(drained)
		return mmerr.Wrap(mmerr.StorageFailure, "refresh unified view failed", err)
	}

	if w.cache != nil {
		w.cache.Invalidate()
	}

	return nil
}

// bulkInsert appends the whole drained batch to the hot table as one
// multi-row INSERT statement rather than row-by-row SQL, per spec §4.6
// step 3's throughput requirement.
func (w *Writer) bulkInsert(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	placeholders := make([]string, len(events))
	args := make([]interface{}, 0, len(events)*len(event.Columns))
	rowPlaceholder := "(" + strings.TrimRight(strings.Repeat("?,", len(event.Columns)), ",") + ")"
	for i, e := range events {
		placeholders[i] = rowPlaceholder
		args = append(args, e.Values()...)
	}

	query := fmt.Sprintf(
		"INSERT INTO events (%s) VALUES %s",
		strings.Join(event.Columns, ", "),
		strings.Join(placeholders, ", "),
	)

	_, err := w.engine.exec(ctx, query, args...)
	return err
}

type sitePartition struct {
	siteID string
	date   string
}

// distinctPartitions returns the set of (site_id, date) pairs present in
// events, in first-seen order.
func distinctPartitions(events []event.Event) []sitePartition {
	seen := make(map[sitePartition]bool)
	var out []sitePartition
	for _, e := range events {
		p := sitePartition{siteID: e.SiteID, date: e.Date()}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// exportPartition copies every hot-table row for one (site_id, date) into
// the next sequentially numbered columnar file in that partition's
// directory, ZSTD-compressed.
func (w *Writer) exportPartition(ctx context.Context, siteID, date string) error {
	if !privacy.IsSafePathComponent(siteID) {
		return fmt.Errorf("unsafe site_id path component: %q", siteID)
	}
	if !privacy.IsSafePathComponent(date) {
		return fmt.Errorf("unsafe date path component: %q", date)
	}

	dir := w.engine.partitionDir(siteID, date)
	index, err := nextFileIndex(dir, func(msg string) { w.engine.logger.Warn().Msg(msg) })
	if err != nil {
		return fmt.Errorf("select next file index: %w", err)
	}
	path := partitionFilePath(dir, index)

	// The COPY target path cannot be a bound parameter (spec §4.6.2), but
	// site_id/date were validated as safe path components above, so the
	// interpolation here carries no injectable content. The selection
	// predicate itself uses bound parameters.
	query := fmt.Sprintf(
		"COPY (SELECT * FROM events WHERE site_id = ? AND CAST(timestamp AS DATE) = CAST(? AS DATE)) TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD)",
		path,
	)
	_, err = w.engine.exec(ctx, query, siteID, date)
	return err
}
