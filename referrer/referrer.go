// Package referrer classifies a referrer URL's source and extracts UTM
// campaign fields from a tracked page URL.
package referrer

import "net/url"

// knownSources maps an exact referrer hostname to the human-readable
// source name shown in breakdowns. Matching is exact, never substring —
// spec §4.3 calls out "reddit.com" containing "t.co" as the canonical
// trap a substring search would fall into.
var knownSources = map[string]string{
	"t.co":                 "Twitter",
	"twitter.com":          "Twitter",
	"x.com":                "Twitter",
	"facebook.com":         "Facebook",
	"m.facebook.com":       "Facebook",
	"l.facebook.com":       "Facebook",
	"lm.facebook.com":      "Facebook",
	"instagram.com":        "Instagram",
	"linkedin.com":         "LinkedIn",
	"lnkd.in":              "LinkedIn",
	"reddit.com":           "Reddit",
	"old.reddit.com":       "Reddit",
	"news.ycombinator.com": "Hacker News",
	"google.com":           "Google",
	"www.google.com":       "Google",
	"bing.com":             "Bing",
	"duckduckgo.com":       "DuckDuckGo",
	"yahoo.com":            "Yahoo",
}

// Result is the parsed referrer/UTM output attached to an event.
type Result struct {
	Source      string // "(unknown)" style callers apply their own default
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string
}

// Source classifies a raw referrer URL string by exact hostname lookup.
// An unparseable or empty referrer yields an empty source.
func Source(referrerURL string) string {
	if referrerURL == "" {
		return ""
	}
	u, err := url.Parse(referrerURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	if name, ok := knownSources[host]; ok {
		return name
	}
	return host
}

// ParseUTM extracts UTM query parameters from the tracked page's own URL
// (not the referrer) — missing keys yield empty values, per spec §4.3.
func ParseUTM(pageURL string) Result {
	result := Result{}
	u, err := url.Parse(pageURL)
	if err != nil {
		return result
	}
	q := u.Query()
	result.UTMSource = q.Get("utm_source")
	result.UTMMedium = q.Get("utm_medium")
	result.UTMCampaign = q.Get("utm_campaign")
	result.UTMContent = q.Get("utm_content")
	result.UTMTerm = q.Get("utm_term")
	return result
}
