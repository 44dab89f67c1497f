// Package useragent classifies a raw User-Agent string into browser, OS,
// and device-type fields using the exact precedence rules spec §4.2
// requires for deterministic, testable output.
package useragent

import "strings"

// Info is the classification result for one User-Agent string.
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string // "desktop", "mobile", or "tablet"
}

// Classify parses ua per spec §4.2's precedence rules.
func Classify(ua string) Info {
	browserName, browserVersion := browser(ua)
	osName, osVersion := osAndVersion(ua)
	return Info{
		Browser:        browserName,
		BrowserVersion: browserVersion,
		OS:             osName,
		OSVersion:      osVersion,
		DeviceType:     deviceType(ua),
	}
}

// deviceType applies the tablet/mobile/desktop precedence from spec §4.2:
// tablet markers first, then mobile markers, else desktop.
func deviceType(ua string) string {
	if strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet") {
		return "tablet"
	}
	if strings.Contains(ua, "Mobile") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "Android") {
		return "mobile"
	}
	return "desktop"
}

// osAndVersion checks iPhone/iPad substrings BEFORE macOS: both contain
// "Mac OS X" verbatim in their UA strings, so checking macOS first would
// misclassify every iOS device.
func osAndVersion(ua string) (string, string) {
	switch {
	case strings.Contains(ua, "iPhone"):
		return "iOS", versionAfter(ua, "iPhone OS ", "_", " ")
	case strings.Contains(ua, "iPad"):
		return "iOS", versionAfter(ua, "CPU OS ", "_", " ")
	case strings.Contains(ua, "Android"):
		return "Android", versionAfter(ua, "Android ", ";", " ")
	case strings.Contains(ua, "Mac OS X"):
		return "macOS", versionAfter(ua, "Mac OS X ", ")", ";")
	case strings.Contains(ua, "Windows NT"):
		return "Windows", versionAfter(ua, "Windows NT ", ";", ")")
	case strings.Contains(ua, "Linux"):
		return "Linux", ""
	default:
		return "", ""
	}
}

// browser implements the Edge → Opera → Chrome (after Edge) → Firefox →
// Safari (after Chrome) check order from spec §4.2.
func browser(ua string) (string, string) {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "Edge", versionAfter(ua, "Edg/", " ", "")
	case strings.Contains(ua, "OPR/"):
		return "Opera", versionAfter(ua, "OPR/", " ", "")
	case strings.Contains(ua, "Chrome/"):
		return "Chrome", versionAfter(ua, "Chrome/", " ", "")
	case strings.Contains(ua, "Firefox/"):
		return "Firefox", versionAfter(ua, "Firefox/", " ", "")
	case strings.Contains(ua, "Safari/") && strings.Contains(ua, "Version/"):
		return "Safari", versionAfter(ua, "Version/", " ", "")
	default:
		return "", ""
	}
}

// versionAfter extracts the substring following token up to the next
// whitespace or any of the given terminator runes, per spec §4.2's
// "substring following the product token up to the next whitespace or '/'"
// extraction rule.
func versionAfter(ua, token string, terminators ...string) string {
	idx := strings.Index(ua, token)
	if idx < 0 {
		return ""
	}
	rest := ua[idx+len(token):]
	end := len(rest)
	for i, r := range rest {
		if r == ' ' || r == '/' {
			end = i
			break
		}
		terminated := false
		for _, t := range terminators {
			if t != "" && strings.HasPrefix(rest[i:], t) {
				end = i
				terminated = true
				break
			}
		}
		if terminated {
			break
		}
	}
	version := rest[:end]
	return strings.ReplaceAll(version, "_", ".")
}
