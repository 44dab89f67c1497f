package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/privacy"
	"github.com/tomtom215/mallardmetrics/storage"
)

// sessionGapMinutes is the 30-minute inactivity gap that ends a session,
// per spec §4.9.1.
const sessionGapMinutes = 30

// BehavioralRunner implements spec §4.9: sessions, funnel, retention,
// sequences. The hand-rolled window-function SQL below needs nothing
// beyond stock DuckDB, so it runs unconditionally; `enabled` exists only
// to force the documented zeroed-default degraded path (spec §7
// ExtensionUnavailable) for operators who want it off, or for testing
// that path without standing up a second deployment.
type BehavioralRunner struct {
	engine  *storage.Engine
	logger  zerolog.Logger
	enabled bool
}

// NewBehavioralRunner ties a BehavioralRunner to the storage engine.
// enabled controls whether the behavioral queries run at all; callers
// normally pass true (spec §6.4's default) and only force it false to
// exercise the degraded path.
func NewBehavioralRunner(engine *storage.Engine, logger zerolog.Logger, enabled bool) *BehavioralRunner {
	r := &BehavioralRunner{engine: engine, logger: logger.With().Str("component", "behavioral_query").Logger(), enabled: enabled}
	if !enabled {
		r.logger.Info().Msg("behavioral queries disabled by configuration; sessions/funnel/retention/sequences will return zeroed defaults")
	}
	return r
}

// available reports whether behavioral queries should run.
func (r *BehavioralRunner) available(ctx context.Context) bool {
	return r.enabled
}

// SessionStats is the /api/stats/sessions response shape.
type SessionStats struct {
	TotalSessions        int64   `json:"total_sessions"`
	AvgSessionDurationSec float64 `json:"avg_session_duration_secs"`
	AvgPagesPerSession    float64 `json:"avg_pages_per_session"`
}

// Sessions computes session counts/durations by gap-sessionizing each
// visitor's events with a 30-minute inactivity threshold, per spec §4.9.1.
func (r *BehavioralRunner) Sessions(ctx context.Context, siteID string, rng Range) (SessionStats, error) {
	if !r.available(ctx) {
		return SessionStats{}, nil
	}

	const query = `
		WITH gapped AS (
			SELECT
				visitor_id,
				timestamp,
				CASE
					WHEN timestamp - lag(timestamp) OVER (PARTITION BY visitor_id ORDER BY timestamp)
						> INTERVAL '30 minutes' THEN 1
					ELSE 0
				END AS new_session
			FROM events_all
			WHERE site_id = ? AND timestamp >= ? AND timestamp <= ?
		),
		sessioned AS (
			SELECT
				visitor_id,
				timestamp,
				sum(new_session) OVER (PARTITION BY visitor_id ORDER BY timestamp) AS session_seq
			FROM gapped
		),
		sessions AS (
			SELECT
				visitor_id,
				session_seq,
				min(timestamp) AS started_at,
				max(timestamp) AS ended_at,
				count(*) AS pages
			FROM sessioned
			GROUP BY visitor_id, session_seq
		)
		SELECT
			count(*) AS total_sessions,
			COALESCE(avg(epoch(ended_at) - epoch(started_at)), 0) AS avg_duration,
			COALESCE(avg(pages), 0) AS avg_pages
		FROM sessions`

	row := r.engine.QueryRow(ctx, query, siteID, rng.Start, rng.End)
	var stats SessionStats
	if err := row.Scan(&stats.TotalSessions, &stats.AvgSessionDurationSec, &stats.AvgPagesPerSession); err != nil {
		return SessionStats{}, mmerr.Wrap(mmerr.StorageFailure, "sessions query failed", err)
	}
	return stats, nil
}

// FunnelStep is one row of the /api/stats/funnel response.
type FunnelStep struct {
	Step     int   `json:"step"`
	Visitors int64 `json:"visitors"`
}

// Funnel computes, for each step, the count of distinct visitors who
// reached at least that step within the window, per spec §4.9.2. The
// interval string must already have passed privacy.IsSafeInterval.
func (r *BehavioralRunner) Funnel(ctx context.Context, siteID string, steps []Step, window string) ([]FunnelStep, error) {
	if len(steps) == 0 {
		return nil, mmerr.New(mmerr.ClientInvalid, "funnel requires at least one step")
	}
	if !privacy.IsSafeInterval(window) {
		return nil, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid funnel window: %q", window))
	}
	if !r.available(ctx) {
		out := make([]FunnelStep, len(steps))
		for i := range steps {
			out[i] = FunnelStep{Step: i + 1, Visitors: 0}
		}
		return out, nil
	}

	// Each step's reaching-visitor count is computed as the set of
	// visitors whose event stream contains steps[0..i] in order within
	// the window, anchored at the visitor's first qualifying event.
	out := make([]FunnelStep, len(steps))
	var reached []string // visitor_ids that reached the previous step, narrows each subsequent query
	for i, step := range steps {
		var query string
		var args []interface{}
		if i == 0 {
			query = fmt.Sprintf(
				`SELECT DISTINCT visitor_id FROM events_all WHERE site_id = ? AND %s`,
				step.Predicate(),
			)
			args = []interface{}{siteID}
		} else {
			if len(reached) == 0 {
				out[i] = FunnelStep{Step: i + 1, Visitors: 0}
				continue
			}
			placeholders := strings.TrimRight(strings.Repeat("?,", len(reached)), ",")
			query = fmt.Sprintf(
				`SELECT DISTINCT visitor_id FROM events_all
				 WHERE site_id = ? AND %s AND visitor_id IN (%s)
				   AND timestamp <= (SELECT min(timestamp) + CAST(? AS INTERVAL) FROM events_all e2
				                      WHERE e2.site_id = events_all.site_id AND e2.visitor_id = events_all.visitor_id AND %s)`,
				step.Predicate(), placeholders, steps[0].Predicate(),
			)
			args = append([]interface{}{siteID}, toArgs(reached)...)
			args = append(args, window)
		}

		rows, err := r.engine.Query(ctx, query, args...)
		if err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "funnel step query failed", err)
		}
		var visitors []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, mmerr.Wrap(mmerr.StorageFailure, "funnel row scan failed", err)
			}
			visitors = append(visitors, v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "funnel query iteration failed", err)
		}

		reached = visitors
		out[i] = FunnelStep{Step: i + 1, Visitors: int64(len(visitors))}
	}
	return out, nil
}

func toArgs(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RetentionRow is one weekly cohort row of the /api/stats/retention response.
type RetentionRow struct {
	CohortDate string `json:"cohort_date"`
	Retained   []bool `json:"retained"`
}

// Retention computes, for each weekly cohort, a boolean array of length
// weeks indicating whether the cohort was observed in week k, per spec
// §4.9.3. weeks must already be validated in [1,52] by the caller.
func (r *BehavioralRunner) Retention(ctx context.Context, siteID string, weeks int) ([]RetentionRow, error) {
	if weeks < 1 || weeks > 52 {
		return nil, mmerr.New(mmerr.ClientInvalid, "weeks must be in [1,52]")
	}
	if !r.available(ctx) {
		return nil, nil
	}

	const query = `
		WITH first_seen AS (
			SELECT visitor_id, date_trunc('week', min(timestamp)) AS cohort_week
			FROM events_all
			WHERE site_id = ?
			GROUP BY visitor_id
		),
		activity AS (
			SELECT DISTINCT visitor_id, date_trunc('week', timestamp) AS active_week
			FROM events_all
			WHERE site_id = ?
		)
		SELECT
			f.cohort_week,
			CAST(date_diff('week', f.cohort_week, a.active_week) AS INTEGER) AS week_offset
		FROM first_seen f
		JOIN activity a ON a.visitor_id = f.visitor_id
		WHERE date_diff('week', f.cohort_week, a.active_week) BETWEEN 0 AND ?
		ORDER BY f.cohort_week`

	rows, err := r.engine.Query(ctx, query, siteID, siteID, weeks-1)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "retention query failed", err)
	}
	defer rows.Close()

	cohorts := make(map[string][]bool)
	var order []string
	for rows.Next() {
		var cohortWeek string
		var offset int
		if err := rows.Scan(&cohortWeek, &offset); err != nil {
			return nil, mmerr.Wrap(mmerr.StorageFailure, "retention row scan failed", err)
		}
		arr, ok := cohorts[cohortWeek]
		if !ok {
			arr = make([]bool, weeks)
			cohorts[cohortWeek] = arr
			order = append(order, cohortWeek)
		}
		if offset >= 0 && offset < weeks {
			arr[offset] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Wrap(mmerr.StorageFailure, "retention query iteration failed", err)
	}

	out := make([]RetentionRow, 0, len(order))
	for _, cohortWeek := range order {
		arr := cohorts[cohortWeek]
		arr[0] = true // position 0 is definitionally true, per spec §4.9.3
		out = append(out, RetentionRow{CohortDate: cohortWeek, Retained: arr})
	}
	return out, nil
}

// SequenceResult is the /api/stats/sequences response shape.
type SequenceResult struct {
	ConvertingVisitors int64   `json:"converting_visitors"`
	TotalVisitors      int64   `json:"total_visitors"`
	ConversionRate     float64 `json:"conversion_rate"`
}

// Sequences computes how many visitors' event streams contain steps in
// order (not necessarily consecutively), per spec §4.9.4. The pattern is
// always constructed from the step count here — it is never accepted as
// a raw string from the caller.
func (r *BehavioralRunner) Sequences(ctx context.Context, siteID string, steps []Step) (SequenceResult, error) {
	if len(steps) < 2 {
		return SequenceResult{}, mmerr.New(mmerr.ClientInvalid, "sequences require at least two steps")
	}

	var totalVisitors int64
	if err := r.engine.QueryRow(ctx,
		`SELECT count(DISTINCT visitor_id) FROM events_all WHERE site_id = ?`, siteID,
	).Scan(&totalVisitors); err != nil {
		return SequenceResult{}, mmerr.Wrap(mmerr.StorageFailure, "sequences total-visitors query failed", err)
	}
	if totalVisitors == 0 {
		return SequenceResult{}, nil
	}

	if !r.available(ctx) {
		return SequenceResult{TotalVisitors: totalVisitors}, nil
	}

	// Build "step i matched" predicates and verify, per visitor, that the
	// matching timestamps for step i+1 are not before step i's — i.e. the
	// steps occur in order. This is the programmatically-constructed
	// equivalent of the spec's `(?1).*(?2)...(?N)` pattern.
	var query strings.Builder
	query.WriteString("WITH ")
	args := []interface{}{}
	for i, step := range steps {
		if i > 0 {
			query.WriteString(", ")
		}
		fmt.Fprintf(&query, "s%d AS (SELECT visitor_id, min(timestamp) AS t FROM events_all WHERE site_id = ? AND %s GROUP BY visitor_id)", i, step.Predicate())
		args = append(args, siteID)
	}
	query.WriteString(" SELECT count(DISTINCT s0.visitor_id) FROM s0")
	for i := 1; i < len(steps); i++ {
		fmt.Fprintf(&query, " JOIN s%d ON s%d.visitor_id = s0.visitor_id AND s%d.t >= s%d.t", i, i, i, i-1)
	}

	var converting int64
	if err := r.engine.QueryRow(ctx, query.String(), args...).Scan(&converting); err != nil {
		return SequenceResult{}, mmerr.Wrap(mmerr.StorageFailure, "sequences query failed", err)
	}

	return SequenceResult{
		ConvertingVisitors: converting,
		TotalVisitors:      totalVisitors,
		ConversionRate:     float64(converting) / float64(totalVisitors),
	}, nil
}
