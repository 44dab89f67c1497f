// Package event defines the persisted record shape shared by the buffer,
// the columnar writer, and the storage schema — split out on its own so
// those three packages can depend on the type without a storage↔buffer
// import cycle.
package event

import "time"

// Event is the persisted record shape from spec §3.1. Every field is
// immutable once ingested; text fields have already been truncated and
// sanitized by the privacy guard before an Event is constructed.
type Event struct {
	SiteID    string
	VisitorID string
	Timestamp time.Time
	EventName string
	Pathname  string

	Hostname       string
	Referrer       string
	ReferrerSource string

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string

	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	ScreenSize     string

	CountryCode string
	Region      string
	City        string

	Props string

	RevenueAmount   *float64
	RevenueCurrency string
}

// Columns lists the 25 columns in schema order, used by both DDL
// generation and the bulk-insert statement builder so the two never
// drift apart.
var Columns = []string{
	"site_id", "visitor_id", "timestamp", "event_name", "pathname",
	"hostname", "referrer", "referrer_source",
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"browser", "browser_version", "os", "os_version", "device_type", "screen_size",
	"country_code", "region", "city",
	"props",
	"revenue_amount", "revenue_currency",
}

// Values returns e's fields in the same order as Columns, ready to bind
// as query parameters for a bulk insert.
func (e Event) Values() []interface{} {
	return []interface{}{
		e.SiteID, e.VisitorID, e.Timestamp, e.EventName, e.Pathname,
		e.Hostname, e.Referrer, e.ReferrerSource,
		e.UTMSource, e.UTMMedium, e.UTMCampaign, e.UTMContent, e.UTMTerm,
		e.Browser, e.BrowserVersion, e.OS, e.OSVersion, e.DeviceType, e.ScreenSize,
		e.CountryCode, e.Region, e.City,
		e.Props,
		e.RevenueAmount, e.RevenueCurrency,
	}
}

// Date returns the UTC calendar date used for partitioning, per spec §3.2.
func (e Event) Date() string {
	return e.Timestamp.UTC().Format("2006-01-02")
}
