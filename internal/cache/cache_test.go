package cache

import (
	"testing"
	"time"
)

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheHit(string)  { o.hits++ }
func (o *countingObserver) CacheMiss(string) { o.misses++ }

func TestCacheExpires(t *testing.T) {
	obs := &countingObserver{}
	c := New[int]("questions", time.Minute, obs)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set("k", 42)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("Get=%v,%v, want 42,true", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if obs.hits != 1 || obs.misses != 2 {
		t.Fatalf("hits=%d misses=%d, want 1 and 2", obs.hits, obs.misses)
	}
}

func TestCacheDisabled(t *testing.T) {
	c := New[string]("questions", 0, nil)
	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("zero TTL cache should never hit")
	}
}

func TestCachePurge(t *testing.T) {
	c := New[string]("questions", time.Hour, nil)
	c.Set("k", "v")
	c.Purge()
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected purge to drop entries")
	}
}
