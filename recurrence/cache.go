package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

// CacheConfig holds configuration for the expansion cache.
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often expired entries are swept
}

// DefaultCacheConfig provides sensible defaults for expansion caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

type cacheEntry struct {
	occurrences []Occurrence
	expiresAt   time.Time
	accessedAt  time.Time
}

// Cache memoizes expansion results. Expansion is deterministic, so a cached
// result is valid as long as the event itself has not changed; the TTL
// guards against callers mutating events without changing their Modified
// timestamp.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]*cacheEntry
	ttl         time.Duration
	maxEntries  int
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewCache creates an expansion cache and starts its cleanup goroutine.
// Callers must Close it when done.
func NewCache(config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	c := &Cache{
		entries:     make(map[string]*cacheEntry),
		ttl:         config.TTL,
		maxEntries:  config.MaxEntries,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop(config.CleanupInterval)
	return c
}

// Key derives a cache key from everything that influences an expansion.
func Key(event storage.Event, until time.Time, opts ExpansionOptions) string {
	h := sha256.New()

	write := func(s string) { h.Write([]byte(s)) }
	writeTime := func(t time.Time) { write(t.UTC().Format(time.RFC3339Nano)) }
	writeTimes := func(ts []time.Time) {
		keys := make([]string, len(ts))
		for i, t := range ts {
			keys[i] = t.UTC().Format(time.RFC3339Nano)
		}
		sort.Strings(keys)
		for _, k := range keys {
			write(k)
		}
		write("|")
	}

	write(event.ID)
	write(event.Modified.UTC().Format(time.RFC3339Nano))
	writeTime(event.Start)
	writeTime(event.End)
	if r, ok := event.Recurrence.Get(); ok {
		write(rule.Encode(r))
	}
	writeTimes(event.ExceptionDates)
	writeTimes(event.InclusionDates)

	writeTime(until)
	writeTime(opts.WindowStart)
	write(strconv.FormatBool(opts.ExcludeHolidays))
	writeTimes(opts.ExcludeDates)
	writeTimes(opts.IncludeDates)
	if limit, ok := opts.MaxOccurrences.Get(); ok {
		write(strconv.Itoa(limit))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached expansion if present and unexpired.
func (c *Cache) Get(key string) ([]Occurrence, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.accessedAt = now
	c.mu.Unlock()
	return entry.occurrences, true
}

// Set stores an expansion result.
func (c *Cache) Set(key string, occurrences []Occurrence) {
	now := time.Now()
	entry := &cacheEntry{
		occurrences: occurrences,
		expiresAt:   now.Add(c.ttl),
		accessedAt:  now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.evictLocked()
	}
}

// evictLocked removes expired entries, then the least recently accessed ones
// until the cache fits. Caller holds the write lock.
func (c *Cache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.accessedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.accessedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evictLocked()
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. Safe to call more
// than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// CacheStats provides information about cache occupancy.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}
	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}
