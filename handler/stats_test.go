package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/cache"
	"github.com/tomtom215/mallardmetrics/event"
	"github.com/tomtom215/mallardmetrics/query"
	"github.com/tomtom215/mallardmetrics/storage"
)

func newTestStatsHandler(t *testing.T) *StatsHandler {
	t.Helper()
	engine, err := storage.Open(context.Background(), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	buf := buffer.New()
	now := time.Now().UTC()
	buf.Push(event.Event{SiteID: "s1", VisitorID: "v1", Timestamp: now, EventName: "pageview", Pathname: "/x", ReferrerSource: "direct"})
	buf.Push(event.Event{SiteID: "s1", VisitorID: "v2", Timestamp: now, EventName: "pageview", Pathname: "/x", ReferrerSource: "direct"})
	w := storage.NewWriter(engine, buf, nil)
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("seed flush: %v", err)
	}

	core := query.NewRunner(engine)
	behavioral := query.NewBehavioralRunner(engine, zerolog.Nop(), true)
	return NewStatsHandler(core, behavioral, cache.New(0), zerolog.Nop())
}

func TestExportDefaultsToJSON(t *testing.T) {
	h := newTestStatsHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stats/export?site_id=s1&period=day", nil)
	w := httptest.NewRecorder()

	h.Export(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "json") {
		t.Fatalf("expected a JSON content type, got %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), `"visitors":2`) {
		t.Fatalf("expected 2 visitors in export body, got %s", w.Body.String())
	}
}

func TestExportCSVEscapesAndOrdersColumns(t *testing.T) {
	h := newTestStatsHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stats/export?site_id=s1&period=day&format=csv", nil)
	w := httptest.NewRecorder()

	h.Export(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected a CSV content type, got %q", w.Header().Get("Content-Type"))
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "date,visitors,pageviews,top_page,top_source\r\n") {
		t.Fatalf("expected the spec column header as the first line, got %q", body)
	}
	if !strings.Contains(body, `,2,2,"/x","direct"`) {
		t.Fatalf("expected 2 visitors/2 pageviews/top_page=/x/top_source=direct, got %q", body)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	h := newTestStatsHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stats/export?site_id=s1&period=day&format=xml", nil)
	w := httptest.NewRecorder()

	h.Export(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unsupported format, got %d: %s", w.Code, w.Body.String())
	}
}
