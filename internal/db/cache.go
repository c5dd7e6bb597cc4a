package db

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"titancore/internal/apperr"
)

// cachedStatement is one entry in a StatementCache.
type cachedStatement struct {
	stmt     *sql.Stmt
	sql      string
	lastUsed time.Time
	useCount int64
}

// CacheStats summarizes a StatementCache's hit/miss history.
type CacheStats struct {
	Size    int
	Hits    int64
	Misses  int64
	Evicted int64
}

// HitRate returns hits / (hits + misses), or 0 if nothing has been looked up.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// StatementCache is a per-connection, bounded LRU cache of prepared
// statements keyed by a hash of their SQL text.
type StatementCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*cachedStatement
	hits     int64
	misses   int64
	evicted  int64
}

// NewStatementCache creates a cache bounded to capacity entries.
func NewStatementCache(capacity int) *StatementCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &StatementCache{
		capacity: capacity,
		entries:  make(map[uint64]*cachedStatement, capacity),
	}
}

func hashSQL(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(query))
	return h.Sum64()
}

// Prepare returns a cached *sql.Stmt for query, preparing and inserting it
// on a miss. ctx bounds the prepare call on a miss.
func (c *StatementCache) Prepare(ctx context.Context, conn *sql.Conn, query string) (*sql.Stmt, error) {
	key := hashSQL(query)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.lastUsed = time.Now()
		entry.useCount++
		c.hits++
		stmt := entry.stmt
		c.mu.Unlock()
		return stmt, nil
	}
	c.misses++
	c.mu.Unlock()

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, apperr.Query(query, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	c.entries[key] = &cachedStatement{stmt: stmt, sql: query, lastUsed: time.Now(), useCount: 1}
	return stmt, nil
}

// evictLocked removes the least-recently-used entry. Caller holds c.mu.
func (c *StatementCache) evictLocked() {
	var lruKey uint64
	var lruTime time.Time
	first := true
	for k, v := range c.entries {
		if first || v.lastUsed.Before(lruTime) {
			lruKey = k
			lruTime = v.lastUsed
			first = false
		}
	}
	if !first {
		if entry := c.entries[lruKey]; entry != nil && entry.stmt != nil {
			entry.stmt.Close()
		}
		delete(c.entries, lruKey)
		c.evicted++
	}
}

// Close closes every prepared statement held by the cache.
func (c *StatementCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if entry.stmt != nil {
			entry.stmt.Close()
		}
		delete(c.entries, k)
	}
}

// Stats returns a snapshot of the cache's hit/miss/eviction counters.
func (c *StatementCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
	}
}
