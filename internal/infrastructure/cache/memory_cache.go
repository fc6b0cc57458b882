package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryCache is the in-process Backend: a byte cache bounded by entry
// count and total bytes, evicting least recently used entries first.
// An entry is dead from its deadline on, whether or not the sweeper has
// reached it yet.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	recency  *list.List // front = most recently used
	maxItems int
	maxBytes int64
	bytes    int64
	now      func() time.Time

	stats MemoryStats

	stopOnce sync.Once
	stopCh   chan struct{}
	logger   *zap.Logger
}

type memoryEntry struct {
	key      string
	payload  []byte
	deadline time.Time
	elem     *list.Element
}

func (e *memoryEntry) cost() int64 { return int64(len(e.key) + len(e.payload)) }

// MemoryStats is a snapshot of MemoryCache counters.
type MemoryStats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64 // pushed out by the item or byte limit
	Expired   int64 // removed after their deadline
}

// HitRate is hits over lookups, 0 before the first lookup.
func (s MemoryStats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// NewMemoryCache creates a cache holding at most maxItems entries and
// maxBytes of keys plus payloads.
func NewMemoryCache(maxItems int, maxBytes int64, logger *zap.Logger) *MemoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryCache{
		entries:  make(map[string]*memoryEntry),
		recency:  list.New(),
		maxItems: maxItems,
		maxBytes: maxBytes,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && !c.now().Before(e.deadline) {
		c.drop(e)
		c.stats.Expired++
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}

	c.recency.MoveToFront(e.elem)
	c.stats.Hits++
	return append([]byte(nil), e.payload...), true, nil
}

// Set stores a copy of value. A value larger than the whole byte budget is
// skipped with a warning rather than flushing the cache for it.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &memoryEntry{
		key:     key,
		payload: append([]byte(nil), value...),
	}
	if e.cost() > c.maxBytes {
		c.logger.Warn("Cache entry exceeds memory budget, not stored",
			zap.String("key", key),
			zap.Int64("size", e.cost()),
			zap.Int64("max_bytes", c.maxBytes),
		)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.drop(old)
	}
	c.makeRoom(e.cost())

	e.deadline = c.now().Add(ttl)
	e.elem = c.recency.PushFront(e)
	c.entries[key] = e
	c.bytes += e.cost()
	return nil
}

// Delete reports whether a live entry was removed.
func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.drop(e)
	return c.now().Before(e.deadline), nil
}

// Clear removes every entry whose key matches pattern.
func (c *MemoryCache) Clear(_ context.Context, pattern string) error {
	c.mu.Lock()
	removed := c.removeWhere(func(e *memoryEntry) bool { return matchPattern(e.key, pattern) })
	c.mu.Unlock()

	c.logger.Info("Cleared cache entries",
		zap.String("pattern", pattern),
		zap.Int("count", removed),
	)
	return nil
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	s.Bytes = c.bytes
	return s
}

// StartCleanup sweeps expired entries every interval until Close.
func (c *MemoryCache) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Close stops the sweeper.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	now := c.now()
	removed := c.removeWhere(func(e *memoryEntry) bool { return !now.Before(e.deadline) })
	c.stats.Expired += int64(removed)
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("Swept expired cache entries", zap.Int("count", removed))
	}
}

// makeRoom evicts from the cold end until an entry of size fits.
// Caller holds mu.
func (c *MemoryCache) makeRoom(size int64) {
	for c.recency.Len() > 0 && (len(c.entries) >= c.maxItems || c.bytes+size > c.maxBytes) {
		c.drop(c.recency.Back().Value.(*memoryEntry))
		c.stats.Evictions++
	}
}

// removeWhere drops every entry matching fn. Caller holds mu.
func (c *MemoryCache) removeWhere(fn func(*memoryEntry) bool) int {
	var doomed []*memoryEntry
	for _, e := range c.entries {
		if fn(e) {
			doomed = append(doomed, e)
		}
	}
	for _, e := range doomed {
		c.drop(e)
	}
	return len(doomed)
}

// drop unlinks e. Caller holds mu.
func (c *MemoryCache) drop(e *memoryEntry) {
	c.recency.Remove(e.elem)
	delete(c.entries, e.key)
	c.bytes -= e.cost()
}

// matchPattern supports "*", a leading "*" suffix match and a trailing
// "*" prefix match. Anything else is an exact key.
func matchPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[0] == '*' {
		suffix := pattern[1:]
		return len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix
	}
	if prefix, wildcard := prefixOf(pattern); wildcard {
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return key == pattern
}
