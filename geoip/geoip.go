// Package geoip resolves an IP address to a coarse country/region/city
// triple using an optional local MaxMind-format database. The IP itself
// is never retained — callers discard it immediately after this lookup,
// per spec §4.5's "geo-enrich then discard" rule.
package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog"
)

// Result is the coarse location derived from an IP. Every field is
// optional: an unresolvable or private address yields all-empty fields
// rather than an error.
type Result struct {
	CountryCode string
	Region      string
	City        string
}

// Resolver wraps an optional MaxMind City database. A Resolver with no
// database loaded always returns an empty Result, matching spec §4.5's
// graceful-absence behavior.
type Resolver struct {
	mu     sync.RWMutex
	db     *geoip2.Reader
	logger zerolog.Logger
}

// Open loads the database at path. An empty path is valid and yields a
// Resolver that always returns empty results — GeoIP enrichment is an
// optional deployment feature, not a hard dependency.
func Open(path string, logger zerolog.Logger) (*Resolver, error) {
	r := &Resolver{logger: logger.With().Str("component", "geoip").Logger()}
	if path == "" {
		r.logger.Info().Msg("no geoip database configured; location fields will be empty")
		return r, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	r.db = db
	return r, nil
}

// Close releases the underlying database file, if one was opened.
func (r *Resolver) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup resolves ipText to a coarse location. Any failure — unparsable
// address, private/reserved range, database miss — yields a zero Result
// rather than an error, since geo enrichment is best-effort.
func (r *Resolver) Lookup(ipText string) Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return Result{}
	}
	ip := net.ParseIP(ipText)
	if ip == nil {
		return Result{}
	}
	record, err := r.db.City(ip)
	if err != nil {
		return Result{}
	}

	res := Result{CountryCode: record.Country.IsoCode}
	if len(record.Subdivisions) > 0 {
		res.Region = record.Subdivisions[0].IsoCode
	}
	if name, ok := record.City.Names["en"]; ok {
		res.City = name
	}
	return res
}
