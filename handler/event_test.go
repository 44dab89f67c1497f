package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/geoip"
	"github.com/tomtom215/mallardmetrics/identity"
	"github.com/tomtom215/mallardmetrics/ingest"
	"github.com/tomtom215/mallardmetrics/ratelimit"
)

func newTestEventHandler(t *testing.T) (*EventHandler, *buffer.Buffer) {
	t.Helper()
	deriver, err := identity.NewDeriver([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	geo, err := geoip.Open("", zerolog.Nop())
	if err != nil {
		t.Fatalf("geoip.Open: %v", err)
	}
	buf := buffer.New()
	orchestrator := ingest.New(ingest.Config{}, deriver, ratelimit.New(0, 0), geo, buf, zerolog.Nop(), nil)
	return NewEventHandler(orchestrator, zerolog.Nop()), buf
}

// TestTrackAcceptsLiteralSpecWireBody exercises the real JSON-decode path
// against the exact body spec §8's S1 scenario posts — the short keys
// (d, n, u) must round-trip into a valid site_id, not an empty one.
func TestTrackAcceptsLiteralSpecWireBody(t *testing.T) {
	h, buf := newTestEventHandler(t)
	body := `{"d":"s1","n":"pageview","u":"https://s1/x"}`

	req := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(body))
	req.RemoteAddr = "1.1.1.1:5555"
	w := httptest.NewRecorder()

	h.Track(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	drained := buf.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(drained))
	}
	if drained[0].SiteID != "s1" {
		t.Fatalf("expected site_id %q decoded from the \"d\" field, got %q", "s1", drained[0].SiteID)
	}
	if drained[0].EventName != "pageview" {
		t.Fatalf("expected event_name decoded from the \"n\" field, got %q", drained[0].EventName)
	}
	if drained[0].Pathname != "/x" {
		t.Fatalf("expected pathname decoded from the \"u\" field, got %q", drained[0].Pathname)
	}
}
