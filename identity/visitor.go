// Package identity derives the privacy-preserving, daily-rotating visitor
// identifier from a client IP and User-Agent pair. It never persists or
// logs the IP it is given — derivation is a pure, one-way function.
package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const dailySaltKey = "mallard-metrics-salt"

// Deriver computes visitor IDs from a process-wide secret. It holds no
// per-request or per-day state — the daily salt is recomputed from the
// secret and the UTC date on every call, per spec §3.3.
type Deriver struct {
	secret []byte
}

// NewDeriver builds a Deriver from a configured secret. If secret is empty,
// a fresh 32-byte value is drawn from the OS CSPRNG — visitor IDs then do
// not persist across restarts, an accepted trade-off per spec §4.1.
func NewDeriver(secret []byte) (*Deriver, error) {
	if len(secret) == 0 {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, err
		}
		secret = generated
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return &Deriver{secret: cp}, nil
}

// dailySalt computes HMAC(key="mallard-metrics-salt", secret||":"||date).
func (d *Deriver) dailySalt(utcDate string) []byte {
	mac := hmac.New(sha256.New, []byte(dailySaltKey))
	mac.Write(d.secret)
	mac.Write([]byte(":"))
	mac.Write([]byte(utcDate))
	return mac.Sum(nil)
}

// Derive computes the visitor ID for an IP/UA pair as of the given instant,
// using only the instant's UTC calendar date. The result is the raw
// 32-byte HMAC output; DeriveHex returns the lowercase hex form that is
// persisted.
func (d *Deriver) Derive(ipText, userAgentText string, at time.Time) []byte {
	utcDate := at.UTC().Format("2006-01-02")
	salt := d.dailySalt(utcDate)

	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(ipText))
	mac.Write([]byte("|"))
	mac.Write([]byte(userAgentText))
	return mac.Sum(nil)
}

// DeriveHex is the convenience form used at the ingestion boundary, where
// visitor_id is stored as 32-byte hex text.
func (d *Deriver) DeriveHex(ipText, userAgentText string, at time.Time) string {
	return hex.EncodeToString(d.Derive(ipText, userAgentText, at))
}
