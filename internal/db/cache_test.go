package db

import (
	"testing"
	"time"
)

func TestStatementCacheStatsHitRate(t *testing.T) {
	c := NewStatementCache(2)
	c.hits = 3
	c.misses = 1
	stats := c.Stats()
	if got, want := stats.HitRate(), 0.75; got != want {
		t.Fatalf("hit rate = %v, want %v", got, want)
	}
}

func TestStatementCacheHitRateZeroDenominator(t *testing.T) {
	c := NewStatementCache(2)
	if rate := c.Stats().HitRate(); rate != 0 {
		t.Fatalf("expected 0 hit rate with no lookups, got %v", rate)
	}
}

func TestStatementCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewStatementCache(2)
	c.entries[1] = &cachedStatement{sql: "a", lastUsed: time.Unix(1, 0)}
	c.entries[2] = &cachedStatement{sql: "b", lastUsed: time.Unix(2, 0)}

	c.mu.Lock()
	c.evictLocked()
	c.mu.Unlock()

	if len(c.entries) != 1 {
		t.Fatalf("expected 1 entry after eviction, got %d", len(c.entries))
	}
	if _, ok := c.entries[1]; ok {
		t.Fatalf("expected the older entry (key 1) to be evicted")
	}
	if _, ok := c.entries[2]; !ok {
		t.Fatalf("expected the newer entry (key 2) to survive")
	}
	if c.evicted != 1 {
		t.Fatalf("expected evicted counter to be 1, got %d", c.evicted)
	}
}
