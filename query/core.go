package query

import (
	"context"
	"fmt"

	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/storage"
)

// Runner executes the core (non-behavioral) analytical queries from spec
// §4.8 against the unified events_all view.
type Runner struct {
	engine *storage.Engine
}

// NewRunner ties a Runner to the storage engine it queries.
func NewRunner(engine *storage.Engine) *Runner {
	return &Runner{engine: engine}
}

// MainStats is the /api/stats/main response shape.
type MainStats struct {
	UniqueVisitors      int64   `json:"unique_visitors"`
	TotalPageviews      int64   `json:"total_pageviews"`
	BounceRate          float64 `json:"bounce_rate"`
	AvgVisitDurationSec float64 `json:"avg_visit_duration_secs"`
	PagesPerVisit       float64 `json:"pages_per_visit"`
}

// MainStats computes unique_visitors, total_pageviews, and pages_per_visit.
// bounce_rate and avg_visit_duration_secs are always 0.0: neither this
// method nor the /api/stats/main handler computes them, whether or not
// behavioral queries are enabled. Session durations are reported by
// /api/stats/sessions instead.
func (r *Runner) MainStats(ctx context.Context, siteID string, rng Range) (MainStats, error) {
	var visitors, pageviews int64
	row := r.engine.QueryRow(ctx,
		`SELECT
			count(DISTINCT visitor_id),
			count(*) FILTER (WHERE event_name = 'pageview')
		 FROM events_all
		 WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?`,
		siteID, rng.Start, rng.End,
	)
	if err := row.Scan(&visitors, &pageviews); err != nil {
		return MainStats{}, mmerr.Wrap(mmerr.StorageFailure, "main stats query failed", err)
	}

	denom := visitors
	if denom < 1 {
		denom = 1
	}

	return MainStats{
		UniqueVisitors:      visitors,
		TotalPageviews:      pageviews,
		PagesPerVisit:       float64(pageviews) / float64(denom),
		BounceRate:          0.0,
		AvgVisitDurationSec: 0.0,
	}, nil
}

// validDimensions is the closed enum spec §4.8 allows as a breakdown
// dimension — these are the only column names ever interpolated into a
// query rather than bound as a parameter.
var validDimensions = map[string]bool{
	"pathname":        true,
	"referrer_source": true,
	"browser":         true,
	"os":              true,
	"device_type":     true,
	"country_code":    true,
}

// BreakdownRow is one row of a dimension breakdown.
type BreakdownRow struct {
	Value     string `json:"value"`
	Visitors  int64  `json:"visitors"`
	Pageviews int64  `json:"pageviews"`
}

// Breakdown groups events_all by dimension, returning the top `limit`
// values ordered by visitors descending. A null/empty dimension value is
// presented as the literal "(unknown)" per spec §4.8.
func (r *Runner) Breakdown(ctx context.Context, siteID, dimension string, rng Range, limit int) ([]BreakdownRow, error) {
	if !validDimensions[dimension] {
		return nil, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid breakdown dimension: %q", dimension))
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(
		`SELECT
			COALESCE(NULLIF(%s, ''), '(unknown)') AS value,
			count(DISTINCT visitor_id) AS visitors,
			count(*) AS pageviews
		 FROM events_all
		 WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?
		 GROUP BY value
		 ORDER BY visitors DESC
		 LIMIT ?`,
		dimension,
	)

	rows, err := r.engine.Query(ctx, query, siteID, rng.Start, rng.End, limit)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "breakdown query failed", err)
	}
	defer rows.Close()

	var out []BreakdownRow
	for rows.Next() {
		var row BreakdownRow
		if err := rows.Scan(&row.Value, &row.Visitors, &row.Pageviews); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "breakdown row scan failed", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TimeseriesPoint is one bucket of the /api/stats/timeseries response.
type TimeseriesPoint struct {
	Date      string `json:"date"`
	Visitors  int64  `json:"visitors"`
	Pageviews int64  `json:"pageviews"`
}

// Timeseries buckets by hour for day/today periods and by day otherwise,
// per spec §4.8. Date formatting uses DuckDB's strftime so the bucket
// label is produced deterministically by the engine rather than relying
// on driver-specific date-to-string coercion (spec L6).
func (r *Runner) Timeseries(ctx context.Context, siteID string, rng Range) ([]TimeseriesPoint, error) {
	var bucketExpr string
	if rng.Granularity == "hour" {
		bucketExpr = "strftime(timestamp, '%Y-%m-%dT%H:00:00Z')"
	} else {
		bucketExpr = "strftime(timestamp, '%Y-%m-%d')"
	}

	query := fmt.Sprintf(
		`SELECT
			%s AS bucket,
			count(DISTINCT visitor_id) AS visitors,
			count(*) AS pageviews
		 FROM events_all
		 WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		bucketExpr,
	)

	rows, err := r.engine.Query(ctx, query, siteID, rng.Start, rng.End)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "timeseries query failed", err)
	}
	defer rows.Close()

	var out []TimeseriesPoint
	for rows.Next() {
		var p TimeseriesPoint
		if err := rows.Scan(&p.Date, &p.Visitors, &p.Pageviews); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "timeseries row scan failed", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExportRow is one day's worth of the /api/stats/export response, per spec
// §6.2: one row per calendar day in the requested range.
type ExportRow struct {
	Date      string `json:"date"`
	Visitors  int64  `json:"visitors"`
	Pageviews int64  `json:"pageviews"`
	TopPage   string `json:"top_page"`
	TopSource string `json:"top_source"`
}

// ExportDaily computes one row per UTC day in rng, each carrying that
// day's visitor/pageview counts plus its most-visited page and most
// frequent referrer source, per spec §6.2's export column list.
func (r *Runner) ExportDaily(ctx context.Context, siteID string, rng Range) ([]ExportRow, error) {
	const query = `
		WITH daily AS (
			SELECT
				strftime(timestamp, '%Y-%m-%d') AS date,
				count(DISTINCT visitor_id) AS visitors,
				count(*) FILTER (WHERE event_name = 'pageview') AS pageviews
			FROM events_all
			WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?
			GROUP BY date
		),
		page_ranked AS (
			SELECT
				strftime(timestamp, '%Y-%m-%d') AS date,
				pathname,
				count(*) AS n,
				row_number() OVER (PARTITION BY strftime(timestamp, '%Y-%m-%d') ORDER BY count(*) DESC) AS rnk
			FROM events_all
			WHERE site_id = ? AND timestamp >= ? AND timestamp <= ? AND event_name = 'pageview'
			GROUP BY date, pathname
		),
		source_ranked AS (
			SELECT
				strftime(timestamp, '%Y-%m-%d') AS date,
				referrer_source,
				count(*) AS n,
				row_number() OVER (PARTITION BY strftime(timestamp, '%Y-%m-%d') ORDER BY count(*) DESC) AS rnk
			FROM events_all
			WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?
			GROUP BY date, referrer_source
		)
		SELECT
			daily.date,
			daily.visitors,
			daily.pageviews,
			COALESCE(page_ranked.pathname, '') AS top_page,
			COALESCE(source_ranked.referrer_source, '') AS top_source
		FROM daily
		LEFT JOIN page_ranked ON page_ranked.date = daily.date AND page_ranked.rnk = 1
		LEFT JOIN source_ranked ON source_ranked.date = daily.date AND source_ranked.rnk = 1
		ORDER BY daily.date ASC`

	rows, err := r.engine.Query(ctx, query,
		siteID, rng.Start, rng.End,
		siteID, rng.Start, rng.End,
		siteID, rng.Start, rng.End,
	)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "export query failed", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.Date, &row.Visitors, &row.Pageviews, &row.TopPage, &row.TopSource); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "export row scan failed", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FlowRow is one row of the /api/stats/flow response.
type FlowRow struct {
	NextPage string `json:"next_page"`
	Visitors int64  `json:"visitors"`
}

// Flow returns up to 10 next-page transitions from the given page, per
// spec §4.9.5. The caller checks only that path is non-empty; path is
// passed to the engine as a bound parameter, never interpolated.
func (r *Runner) Flow(ctx context.Context, siteID, path string) ([]FlowRow, error) {
	const query = `
		WITH ordered AS (
			SELECT
				visitor_id,
				pathname,
				timestamp,
				lead(pathname) OVER (PARTITION BY visitor_id ORDER BY timestamp) AS next_pathname
			FROM events_all
			WHERE site_id = ?
		)
		SELECT next_pathname, count(DISTINCT visitor_id) AS visitors
		FROM ordered
		WHERE pathname = ? AND next_pathname IS NOT NULL
		GROUP BY next_pathname
		ORDER BY visitors DESC
		LIMIT 10`

	rows, err := r.engine.Query(ctx, query, siteID, path)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "flow query failed", err)
	}
	defer rows.Close()

	var out []FlowRow
	for rows.Next() {
		var row FlowRow
		if err := rows.Scan(&row.NextPage, &row.Visitors); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "flow row scan failed", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
