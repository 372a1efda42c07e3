package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the CacheRepository interface
type MemoryCache struct {
	entries     map[core.Feature]map[string]*core.CacheEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	clock       core.Clock
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache. A non-positive cleanupFreq disables the
// background cleanup task; expired entries are still hidden on read.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration, clock core.Clock) *MemoryCache {
	if clock == nil {
		clock = core.SystemClock
	}
	cache := &MemoryCache{
		entries:     make(map[core.Feature]map[string]*core.CacheEntry),
		logger:      logger,
		clock:       clock,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache
}

// Get retrieves a live entry and records the hit
func (c *MemoryCache) Get(ctx context.Context, feature core.Feature, fingerprint string) (*core.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[feature][fingerprint]
	if !ok {
		return nil, core.ErrCacheMiss
	}

	now := c.clock()
	if entry.Expired(now) {
		return nil, core.ErrCacheMiss
	}

	entry.HitCount++
	entry.LastAccessedAt = now
	return entry.Clone(), nil
}

// Set stores a cache entry, replacing any previous entry for the same key
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	partition, ok := c.entries[entry.Feature]
	if !ok {
		partition = make(map[string]*core.CacheEntry)
		c.entries[entry.Feature] = partition
	}
	stored := entry.Clone()
	stored.HitCount = 0
	partition[entry.Fingerprint] = stored
	return nil
}

// Stats summarizes live entries
func (c *MemoryCache) Stats(ctx context.Context) (*core.CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock()
	stats := core.NewCacheStats()
	for feature, partition := range c.entries {
		for _, entry := range partition {
			stats.Observe(feature, entry.ExpiresAt, entry.HitCount, now)
		}
	}
	return stats, nil
}

// Clear removes the feature's entries, or all entries when feature is empty
func (c *MemoryCache) Clear(ctx context.Context, feature core.Feature) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deleted int64
	for f, partition := range c.entries {
		if feature != "" && f != feature {
			continue
		}
		deleted += int64(len(partition))
		delete(c.entries, f)
	}
	return deleted, nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	expiredCount := 0

	for _, partition := range c.entries {
		for key, entry := range partition {
			if entry.Expired(now) {
				delete(partition, key)
				expiredCount++
			}
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
