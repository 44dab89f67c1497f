package ingest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/geoip"
	"github.com/tomtom215/mallardmetrics/identity"
	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/ratelimit"
)

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *buffer.Buffer) {
	t.Helper()
	deriver, err := identity.NewDeriver([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	geo, err := geoip.Open("", zerolog.Nop())
	if err != nil {
		t.Fatalf("geoip.Open: %v", err)
	}
	limiter := ratelimit.New(0, 0)
	buf := buffer.New()
	o := New(cfg, deriver, limiter, geo, buf, zerolog.Nop(), nil)
	return o, buf
}

func TestAcceptPushesSanitizedEventToBuffer(t *testing.T) {
	o, buf := newTestOrchestrator(t, Config{FlushThreshold: 0})
	req := Request{SiteID: "site-a", EventName: "pageview", PageURL: "https://example.com/pricing?x=1"}
	if err := o.Accept(req, "203.0.113.5:54321", "", "Mozilla/5.0"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	drained := buf.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(drained))
	}
	if drained[0].Pathname != "/pricing" {
		t.Fatalf("expected pathname /pricing, got %q", drained[0].Pathname)
	}
	if drained[0].VisitorID == "" {
		t.Fatalf("expected a derived visitor id")
	}
}

func TestAcceptRejectsUnsafeSiteID(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	err := o.Accept(Request{SiteID: "../etc"}, "1.2.3.4:1", "", "ua")
	if err == nil {
		t.Fatalf("expected an error for an unsafe site_id")
	}
	var merr *mmerr.Error
	if !mmerr.As(err, &merr) || merr.Kind != mmerr.ClientInvalid {
		t.Fatalf("expected ClientInvalid, got %v", err)
	}
}

func TestAcceptDeniesDisallowedOrigin(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{AllowedOrigins: []string{"https://allowed.example"}})
	err := o.Accept(Request{SiteID: "site-a"}, "1.2.3.4:1", "https://evil.example", "ua")
	var merr *mmerr.Error
	if !mmerr.As(err, &merr) || merr.Kind != mmerr.OriginDenied {
		t.Fatalf("expected OriginDenied, got %v", err)
	}
}

func TestAcceptSilentlyDropsBotTraffic(t *testing.T) {
	o, buf := newTestOrchestrator(t, Config{FilterBots: true})
	err := o.Accept(Request{SiteID: "site-a"}, "1.2.3.4:1", "", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	if err != nil {
		t.Fatalf("expected bot traffic to be dropped silently, got error: %v", err)
	}
	if len(buf.Drain()) != 0 {
		t.Fatalf("expected no event buffered for bot traffic")
	}
}

func TestAcceptTriggersFlushAtThreshold(t *testing.T) {
	triggered := false
	deriver, _ := identity.NewDeriver([]byte("s"))
	geo, _ := geoip.Open("", zerolog.Nop())
	o := New(Config{FlushThreshold: 2}, deriver, ratelimit.New(0, 0), geo, buffer.New(), zerolog.Nop(), func() { triggered = true })

	req := Request{SiteID: "site-a"}
	if err := o.Accept(req, "1.2.3.4:1", "", "ua"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if triggered {
		t.Fatalf("did not expect flush trigger before threshold")
	}
	if err := o.Accept(req, "1.2.3.4:1", "", "ua"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !triggered {
		t.Fatalf("expected flush trigger once buffer depth reached threshold")
	}
}

func TestAcceptDefaultsMissingEventNameToPageview(t *testing.T) {
	o, buf := newTestOrchestrator(t, Config{})
	if err := o.Accept(Request{SiteID: "site-a"}, "1.2.3.4:1", "", "ua"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	drained := buf.Drain()
	if len(drained) != 1 || drained[0].EventName != "pageview" {
		t.Fatalf("expected default event_name pageview, got %+v", drained)
	}
}
