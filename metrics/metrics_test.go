package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIncCounterAccumulates(t *testing.T) {
	r := New()
	r.IncCounter("events_total", nil, 1)
	r.IncCounter("events_total", nil, 2)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler()(w, req)
	if !strings.Contains(w.Body.String(), "events_total 3") {
		t.Fatalf("expected accumulated counter in output, got %q", w.Body.String())
	}
}

func TestLabelKeyRendersSortedLabels(t *testing.T) {
	got := labelKey("ingest_total", map[string]string{"b": "2", "a": "1"})
	want := `ingest_total{a="1",b="2"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetGaugeOverwrites(t *testing.T) {
	r := New()
	r.SetGauge("buffer_depth", nil, 5)
	r.SetGauge("buffer_depth", nil, 9)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler()(w, req)
	if !strings.Contains(w.Body.String(), "buffer_depth 9") {
		t.Fatalf("expected gauge to reflect the latest value, got %q", w.Body.String())
	}
}

func TestObserveHistogramBucketsAreCumulative(t *testing.T) {
	r := New()
	r.ObserveHistogram("flush_duration_seconds", nil, 0.02)
	r.ObserveHistogram("flush_duration_seconds", nil, 3)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler()(w, req)
	body := w.Body.String()
	if !strings.Contains(body, `flush_duration_seconds_count 2`) {
		t.Fatalf("expected total count of 2, got %q", body)
	}
	if !strings.Contains(body, `flush_duration_seconds_bucket{le="+Inf"} 2`) {
		t.Fatalf("expected +Inf bucket to hold every sample, got %q", body)
	}
}
