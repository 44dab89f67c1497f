// Package ingest wires together identity derivation, classification,
// filtering, and buffering into the single ingestion pipeline an incoming
// event request passes through, per spec §4.11.
package ingest

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/event"
	"github.com/tomtom215/mallardmetrics/geoip"
	"github.com/tomtom215/mallardmetrics/identity"
	"github.com/tomtom215/mallardmetrics/mmerr"
	"github.com/tomtom215/mallardmetrics/privacy"
	"github.com/tomtom215/mallardmetrics/ratelimit"
	"github.com/tomtom215/mallardmetrics/referrer"
	"github.com/tomtom215/mallardmetrics/useragent"
)

// maxTextFieldLen bounds the long free-text fields (pathname, referrer)
// sanitized at the boundary; shorter fields use their own limits below.
const maxTextFieldLen = 2048

// FlushTrigger is called once the buffer has crossed the configured
// flush threshold, so the caller can schedule an out-of-band flush
// instead of blocking the request on it.
type FlushTrigger func()

// Request is the raw inbound event payload, already JSON-decoded from the
// request body by the HTTP handler. Field names follow spec §6.1's short
// wire keys exactly — this is the public ingestion contract, not an
// internal convenience shape.
type Request struct {
	SiteID          string   `json:"d"`
	EventName       string   `json:"n"`
	PageURL         string   `json:"u"`
	Referrer        string   `json:"r"`
	ScreenWidth     int      `json:"w"`
	Props           string   `json:"p"`
	RevenueAmount   *float64 `json:"ra"`
	RevenueCurrency string   `json:"rc"`
}

// Orchestrator implements spec §4.11's ten-step ingestion pipeline.
type Orchestrator struct {
	deriver        *identity.Deriver
	limiter        *ratelimit.Limiter
	geo            *geoip.Resolver
	buf            *buffer.Buffer
	logger         zerolog.Logger
	allowedOrigins map[string]bool
	filterBots     bool
	flushThreshold int
	onFlushDue     FlushTrigger
}

// Config bundles the orchestrator's construction-time settings.
type Config struct {
	AllowedOrigins []string
	FilterBots     bool
	FlushThreshold int
}

// New builds an Orchestrator.
func New(cfg Config, deriver *identity.Deriver, limiter *ratelimit.Limiter, geo *geoip.Resolver, buf *buffer.Buffer, logger zerolog.Logger, onFlushDue FlushTrigger) *Orchestrator {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	return &Orchestrator{
		deriver:        deriver,
		limiter:        limiter,
		geo:            geo,
		buf:            buf,
		logger:         logger.With().Str("component", "ingest").Logger(),
		allowedOrigins: allowed,
		filterBots:     cfg.FilterBots,
		flushThreshold: cfg.FlushThreshold,
		onFlushDue:     onFlushDue,
	}
}

// Accept runs the full ten-step pipeline from spec §4.11 against one
// decoded request, given the raw remote address, Origin header, and
// User-Agent header the HTTP layer extracted. A nil error means the caller
// should answer 2xx; that includes bot traffic, which is silently dropped
// without being buffered.
func (o *Orchestrator) Accept(req Request, remoteAddr, origin, userAgent string) error {
	// Step 2: validate site_id.
	if !privacy.IsSafePathComponent(req.SiteID) {
		return mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid site_id: %q", req.SiteID))
	}
	if req.EventName == "" {
		req.EventName = "pageview"
	}

	// Step 3: origin allowlist, exact match only (spec P6).
	if len(o.allowedOrigins) > 0 && !o.allowedOrigins[origin] {
		return mmerr.New(mmerr.OriginDenied, fmt.Sprintf("origin not allowed: %q", origin))
	}

	// Step 4: per-site rate limit.
	if admitted, retryAfter := o.limiter.Allow(req.SiteID); !admitted {
		return mmerr.Wrap(mmerr.RateLimited, "rate limit exceeded", fmt.Errorf("retry after %s", retryAfter))
	}

	// Step 5: bot filter — silently dropped, not an error.
	if o.filterBots && useragent.IsBot(userAgent) {
		o.logger.Debug().Str("site_id", req.SiteID).Msg("dropped bot traffic")
		return nil
	}

	// Step 6: derive visitor_id, geo-enrich, then discard the IP.
	ip := extractIP(remoteAddr)
	now := time.Now()
	visitorID := o.deriver.DeriveHex(ip, userAgent, now)
	var loc geoip.Result
	if o.geo != nil {
		loc = o.geo.Lookup(ip)
	}

	// Step 7: classify UA and parse URL/referrer.
	ua := useragent.Classify(userAgent)
	utm := referrer.ParseUTM(req.PageURL)
	pathname, hostname := splitURL(req.PageURL)
	refSource := referrer.Source(req.Referrer)

	// Step 8: sanitize and truncate text fields.
	ev := event.Event{
		SiteID:         req.SiteID,
		VisitorID:      visitorID,
		Timestamp:      now,
		EventName:      privacy.SanitizeText(req.EventName, 128),
		Pathname:       privacy.SanitizeText(pathname, maxTextFieldLen),
		Hostname:       privacy.SanitizeText(hostname, 256),
		Referrer:       privacy.SanitizeText(req.Referrer, maxTextFieldLen),
		ReferrerSource: privacy.SanitizeText(refSource, 64),
		UTMSource:      privacy.SanitizeText(utm.UTMSource, 256),
		UTMMedium:      privacy.SanitizeText(utm.UTMMedium, 256),
		UTMCampaign:    privacy.SanitizeText(utm.UTMCampaign, 256),
		UTMContent:     privacy.SanitizeText(utm.UTMContent, 256),
		UTMTerm:        privacy.SanitizeText(utm.UTMTerm, 256),
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.DeviceType,
		ScreenSize:     screenSize(req.ScreenWidth),
		CountryCode:    loc.CountryCode,
		Region:         loc.Region,
		City:           loc.City,
		Props:          sanitizeProps(req.Props),
	}
	if req.RevenueAmount != nil {
		amount := *req.RevenueAmount
		ev.RevenueAmount = &amount
		ev.RevenueCurrency = privacy.SanitizeText(req.RevenueCurrency, 3)
	}

	// Step 9: push to buffer, trigger a background flush once the
	// configured threshold is crossed.
	depth := o.buf.Push(ev)
	if o.flushThreshold > 0 && depth >= o.flushThreshold && o.onFlushDue != nil {
		o.onFlushDue()
	}

	// Step 10: caller returns 202 on a nil error.
	return nil
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func splitURL(rawURL string) (pathname, hostname string) {
	idx := strings.Index(rawURL, "://")
	rest := rawURL
	if idx >= 0 {
		rest = rawURL[idx+3:]
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "/", rest
	}
	host := rest[:slash]
	path := rest[slash:]
	if q := strings.Index(path, "?"); q >= 0 {
		path = path[:q]
	}
	if path == "" {
		path = "/"
	}
	return path, host
}

func screenSize(w int) string {
	if w <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", w)
}

// sanitizeProps bounds the custom-properties payload to spec §6.1's
// 4096-byte ceiling — it is never parsed or indexed, only round-tripped
// for retrieval, per spec §3.1.
func sanitizeProps(raw string) string {
	if raw == "" {
		return ""
	}
	return privacy.SanitizeText(raw, 4096)
}

// ExtractRemoteAddr pulls the request's effective client address,
// preferring X-Forwarded-For's first hop when present (spec §4.11 step 6),
// falling back to RemoteAddr otherwise.
func ExtractRemoteAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
