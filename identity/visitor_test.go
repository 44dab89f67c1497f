package identity

import (
	"testing"
	"time"
)

func TestDeriveIsDeterministicWithinDay(t *testing.T) {
	d, err := NewDeriver([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	at := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	a := d.DeriveHex("203.0.113.5", "test-ua", at)
	b := d.DeriveHex("203.0.113.5", "test-ua", at.Add(time.Hour))
	if a != b {
		t.Fatalf("expected same-day IP/UA pair to derive identical IDs, got %q vs %q", a, b)
	}
}

func TestDeriveRotatesAcrossDays(t *testing.T) {
	d, err := NewDeriver([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	day1 := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)
	day2 := day1.Add(2 * time.Second)
	a := d.DeriveHex("203.0.113.5", "test-ua", day1)
	b := d.DeriveHex("203.0.113.5", "test-ua", day2)
	if a == b {
		t.Fatalf("expected visitor ID to rotate across UTC day boundary")
	}
}

func TestDeriveDiffersByIPOrUA(t *testing.T) {
	d, err := NewDeriver([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	at := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	base := d.DeriveHex("203.0.113.5", "ua-a", at)
	diffIP := d.DeriveHex("203.0.113.6", "ua-a", at)
	diffUA := d.DeriveHex("203.0.113.5", "ua-b", at)
	if base == diffIP || base == diffUA {
		t.Fatalf("expected IP/UA change to change the derived visitor ID")
	}
}

func TestNewDeriverGeneratesSecretWhenEmpty(t *testing.T) {
	d, err := NewDeriver(nil)
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	if len(d.secret) != 32 {
		t.Fatalf("expected a generated 32-byte secret, got %d bytes", len(d.secret))
	}
}
