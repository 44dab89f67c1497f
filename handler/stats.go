package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/cache"
	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/privacy"
	"github.com/tomtom215/mallardmetrics/query"
)

// StatsHandler serves the read-only /api/stats/* analytical endpoints.
type StatsHandler struct {
	core       *query.Runner
	behavioral *query.BehavioralRunner
	cache      *cache.Cache
	logger     zerolog.Logger
}

// NewStatsHandler ties a StatsHandler to its query runners and cache.
func NewStatsHandler(core *query.Runner, behavioral *query.BehavioralRunner, c *cache.Cache, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{core: core, behavioral: behavioral, cache: c, logger: logger.With().Str("handler", "stats").Logger()}
}

func (h *StatsHandler) siteAndRange(r *http.Request) (string, query.Range, error) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		return "", query.Range{}, mmerr.New(mmerr.ClientInvalid, "site_id is required")
	}
	rng, err := query.NormalizePeriod(r.URL.Query().Get("period"), r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		return "", query.Range{}, err
	}
	return siteID, rng, nil
}

// cached runs compute and memoizes its result under key, unless the
// cache is disabled.
func (h *StatsHandler) cached(key string, compute func() (interface{}, error)) (interface{}, error) {
	if v, ok := h.cache.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	h.cache.Put(key, v)
	return v, nil
}

// Main serves GET /api/stats/main.
func (h *StatsHandler) Main(w http.ResponseWriter, r *http.Request) {
	siteID, rng, err := h.siteAndRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key := fmt.Sprintf("main:%s:%s:%s", siteID, rng.Start, rng.End)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.core.MainStats(r.Context(), siteID, rng)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Breakdown serves GET /api/stats/breakdown.
func (h *StatsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	siteID, rng, err := h.siteAndRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dimension := r.URL.Query().Get("dimension")
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, convErr := strconv.Atoi(l); convErr == nil {
			limit = parsed
		}
	}
	key := fmt.Sprintf("breakdown:%s:%s:%s:%s:%d", siteID, dimension, rng.Start, rng.End, limit)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.core.Breakdown(r.Context(), siteID, dimension, rng, limit)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Timeseries serves GET /api/stats/timeseries.
func (h *StatsHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	siteID, rng, err := h.siteAndRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key := fmt.Sprintf("timeseries:%s:%s:%s:%s", siteID, rng.Start, rng.End, rng.Granularity)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.core.Timeseries(r.Context(), siteID, rng)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Flow serves GET /api/stats/flow.
func (h *StatsHandler) Flow(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	path := r.URL.Query().Get("path")
	if siteID == "" || path == "" {
		writeError(w, mmerr.New(mmerr.ClientInvalid, "site_id and path are required"))
		return
	}
	key := fmt.Sprintf("flow:%s:%s", siteID, path)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.core.Flow(r.Context(), siteID, path)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export serves GET /api/stats/export: daily aggregates rendered as CSV or
// JSON per spec §6.2, selected by the format query param (csv|json,
// defaulting to json).
func (h *StatsHandler) Export(w http.ResponseWriter, r *http.Request) {
	siteID, rng, err := h.siteAndRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "csv" && format != "json" {
		writeError(w, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid export format: %q", format)))
		return
	}

	key := fmt.Sprintf("export:%s:%s:%s:%s", siteID, rng.Start, rng.End, format)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.core.ExportDaily(r.Context(), siteID, rng)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rows := result.([]query.ExportRow)

	if format == "csv" {
		writeCSVExport(w, rows)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// writeCSVExport renders rows as a CSV document, per spec §6.2's column
// order: date,visitors,pageviews,top_page,top_source. Every non-numeric
// field is escaped through privacy.EscapeCSVField so the export can never
// carry a spreadsheet-formula injection or a stray embedded quote.
func writeCSVExport(w http.ResponseWriter, rows []query.ExportRow) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	var b strings.Builder
	b.WriteString("date,visitors,pageviews,top_page,top_source\r\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s,%d,%d,%s,%s\r\n",
			privacy.EscapeCSVField(row.Date),
			row.Visitors,
			row.Pageviews,
			privacy.EscapeCSVField(row.TopPage),
			privacy.EscapeCSVField(row.TopSource),
		)
	}
	w.Write([]byte(b.String()))
}

// Sessions serves GET /api/stats/sessions.
func (h *StatsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	siteID, rng, err := h.siteAndRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key := fmt.Sprintf("sessions:%s:%s:%s", siteID, rng.Start, rng.End)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.behavioral.Sessions(r.Context(), siteID, rng)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Funnel serves GET /api/stats/funnel.
func (h *StatsHandler) Funnel(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		writeError(w, mmerr.New(mmerr.ClientInvalid, "site_id is required"))
		return
	}
	steps, err := query.ParseSteps(r.URL.Query().Get("steps"))
	if err != nil {
		writeError(w, err)
		return
	}
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "30 minutes"
	}
	key := fmt.Sprintf("funnel:%s:%s:%s", siteID, r.URL.Query().Get("steps"), window)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.behavioral.Funnel(r.Context(), siteID, steps, window)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Retention serves GET /api/stats/retention.
func (h *StatsHandler) Retention(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		writeError(w, mmerr.New(mmerr.ClientInvalid, "site_id is required"))
		return
	}
	weeks := 8
	if v := r.URL.Query().Get("weeks"); v != "" {
		if parsed, convErr := strconv.Atoi(v); convErr == nil {
			weeks = parsed
		}
	}
	key := fmt.Sprintf("retention:%s:%d", siteID, weeks)
	result, err := h.cached(key, func() (interface{}, error) {
		return h.behavioral.Retention(r.Context(), siteID, weeks)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Sequences serves GET /api/stats/sequences.
func (h *StatsHandler) Sequences(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		writeError(w, mmerr.New(mmerr.ClientInvalid, "site_id is required"))
		return
	}
	steps, err := query.ParseSteps(r.URL.Query().Get("steps"))
	if err != nil {
		writeError(w, err)
		return
	}
	key := fmt.Sprintf("sequences:%s:%s", siteID, r.URL.Query().Get("steps"))
	result, err := h.cached(key, func() (interface{}, error) {
		return h.behavioral.Sequences(r.Context(), siteID, steps)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
