package cache

import (
	"testing"
	"time"
)

func TestFingerprintStableForEquivalentArgs(t *testing.T) {
	a := Fingerprint("Read", map[string]any{"path": "/a", "limit": 10})
	b := Fingerprint("Read", map[string]any{"limit": 10, "path": "/a"})
	if a != b {
		t.Fatalf("expected fingerprints to match regardless of map key order")
	}
}

func TestFingerprintDiffersForDifferentArgs(t *testing.T) {
	a := Fingerprint("Read", map[string]any{"path": "/a"})
	b := Fingerprint("Read", map[string]any{"path": "/b"})
	if a == b {
		t.Fatalf("expected fingerprints to differ for different args")
	}
}

func TestCacheGetSet(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected cached value 'v', got %v (%v)", got, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Millisecond, 10)
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to be expired")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New(time.Minute, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch a, making b the LRU entry
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted as least-recently-used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestCacheStatsHitRate(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if rate := stats.HitRate(); rate < 0.49 || rate > 0.51 {
		t.Fatalf("expected hit rate ~0.5, got %v", rate)
	}
}
