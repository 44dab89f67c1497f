// Package privacy implements the input-safety primitives that every other
// component in the core relies on before a user-supplied string is allowed
// to touch the filesystem, an analytical query, or a CSV cell.
package privacy

import (
	"crypto/subtle"
	"regexp"
	"strings"
)

// maxPathComponent is the length bound from spec §4.15 / §3.1.
const maxPathComponent = 256

// IsSafePathComponent reports whether s is safe to use as a directory or
// file-name component: non-empty, at most 256 bytes, and free of path
// traversal or NUL bytes.
func IsSafePathComponent(s string) bool {
	if s == "" || len(s) > maxPathComponent {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	if strings.ContainsAny(s, "/\\") {
		return false
	}
	if strings.ContainsRune(s, 0) {
		return false
	}
	return true
}

// safeIntervalPattern is the funnel-window grammar from spec §4.9.2:
// an integer count followed by a unit name, optionally pluralized.
var safeIntervalPattern = regexp.MustCompile(`^\d+\s+(second|minute|hour|day|week|month)s?$`)

// IsSafeInterval reports whether s matches the funnel window grammar.
func IsSafeInterval(s string) bool {
	return safeIntervalPattern.MatchString(s)
}

// csvFormulaPrefixes are the leading characters that spreadsheet software
// interprets as the start of a formula.
var csvFormulaPrefixes = []byte{'=', '+', '-', '@'}

// EscapeCSVField applies CSV-injection and quoting rules: embedded double
// quotes are doubled, a leading single quote is added whenever the field
// would otherwise be read as a spreadsheet formula, and the result is
// always wrapped in double quotes so it round-trips through any CSV reader.
func EscapeCSVField(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `""`)
	if len(escaped) > 0 {
		for _, prefix := range csvFormulaPrefixes {
			if escaped[0] == prefix {
				escaped = "'" + escaped
				break
			}
		}
	}
	return `"` + escaped + `"`
}

// ConstantTimeEq compares two byte slices without leaking timing
// information about where they first differ. Used for API-key comparisons.
func ConstantTimeEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ConstantTimeEqString is the string-typed convenience wrapper.
func ConstantTimeEqString(a, b string) bool {
	return ConstantTimeEq([]byte(a), []byte(b))
}

// SanitizeText strips control characters and truncates to maxLen runes,
// applied to every user-provided text field at the ingestion boundary
// per spec §3.1 invariant (ii).
func SanitizeText(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(' ')
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if maxLen > 0 {
		runes := []rune(out)
		if len(runes) > maxLen {
			out = string(runes[:maxLen])
		}
	}
	return out
}
