package core

import (
	"context"

	"go.uber.org/zap"
)

// FeatureCache applies per-organization enablement flags in front of the cache repository.
// A disabled feature neither reads nor grows the store.
type FeatureCache struct {
	repo   CacheRepository
	clock  Clock
	logger *zap.Logger
}

// NewFeatureCache wraps repo. A nil repo behaves like an always-empty cache.
func NewFeatureCache(repo CacheRepository, clock Clock, logger *zap.Logger) *FeatureCache {
	if clock == nil {
		clock = SystemClock
	}
	return &FeatureCache{repo: repo, clock: clock, logger: logger}
}

// Get returns a live entry for the feature and records the hit
func (c *FeatureCache) Get(ctx context.Context, cfg OptimizationConfig, feature Feature, fingerprint string) (*CacheEntry, error) {
	if c.repo == nil || !cfg.CacheEnabled(feature) {
		return nil, ErrCacheMiss
	}
	return c.repo.Get(ctx, feature, fingerprint)
}

// Put upserts a result. It reports false when the feature's cache is disabled.
func (c *FeatureCache) Put(ctx context.Context, cfg OptimizationConfig, feature Feature, fingerprint string, payload []byte) (bool, error) {
	if c.repo == nil || !cfg.CacheEnabled(feature) {
		return false, nil
	}
	if err := c.repo.Set(ctx, NewCacheEntry(feature, fingerprint, payload, c.clock())); err != nil {
		return false, err
	}
	return true, nil
}
