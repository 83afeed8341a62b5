package storage

import (
	"sync"
	"time"
)

type seenEntry struct {
	key string
	ts  time.Time
}

// seenCache keeps a bounded set of recently fetched URLs with the time they
// were last stored. Entries older than ttl or beyond capacity are evicted
// oldest first.
type seenCache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []seenEntry
	capacity int
	ttl      time.Duration
}

func newSeenCache(capacity int, ttl time.Duration) *seenCache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &seenCache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]seenEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// seenSince reports whether key was marked at or after since.
func (c *seenCache) seenSince(key string, since time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.items[key]
	return ok && !ts.Before(since)
}

func (c *seenCache) markSeen(key string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = at
	c.order = append(c.order, seenEntry{key: key, ts: at})
	c.compact(at)
}

func (c *seenCache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if ts, ok := c.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
