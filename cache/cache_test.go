package cache

import (
	"testing"
	"time"
)

func TestGetPutRoundTrip(t *testing.T) {
	c := New(time.Minute)
	c.Put("key", 42)
	v, ok := c.Get("key")
	if !ok || v != 42 {
		t.Fatalf("expected cached value 42, got %v (ok=%v)", v, ok)
	}
}

func TestDisabledCacheNeverStores(t *testing.T) {
	c := New(0)
	if c.Enabled() {
		t.Fatalf("expected ttl=0 to disable the cache")
	}
	c.Put("key", 42)
	if _, ok := c.Get("key"); ok {
		t.Fatalf("expected a disabled cache to never return a hit")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put("key", "value")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestInvalidateClearsEverything(t *testing.T) {
	c := New(time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Invalidate()
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected Invalidate to clear all entries")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Fatalf("expected 0 entries after invalidate, got %d", stats.Entries)
	}
}
