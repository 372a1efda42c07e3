package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyRepo struct {
	*MemoryCache
	failing atomic.Bool
	calls   atomic.Int32
}

func (r *flakyRepo) Get(ctx context.Context, feature core.Feature, fingerprint string) (*core.CacheEntry, error) {
	r.calls.Add(1)
	if r.failing.Load() {
		return nil, errors.New("i/o timeout")
	}
	return r.MemoryCache.Get(ctx, feature, fingerprint)
}

func TestResilientCache_MissesDoNotTrip(t *testing.T) {
	repo := &flakyRepo{MemoryCache: NewMemoryCache(zap.NewNop(), 0, nil)}
	c := NewResilientCache(repo, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), core.FeatureIntel, "missing")
		assert.ErrorIs(t, err, core.ErrCacheMiss)
	}
	assert.Equal(t, "closed", c.State())
}

func TestResilientCache_OpensAfterConsecutiveFailures(t *testing.T) {
	repo := &flakyRepo{MemoryCache: NewMemoryCache(zap.NewNop(), 0, nil)}
	repo.failing.Store(true)
	c := NewResilientCache(repo, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Get(ctx, core.FeatureIntel, "fp")
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrStoreUnavailable)
	}

	_, err := c.Get(ctx, core.FeatureIntel, "fp")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Equal(t, int32(2), repo.calls.Load())
	assert.Equal(t, "open", c.State())
}

func TestResilientCache_PassesThroughEntries(t *testing.T) {
	repo := &flakyRepo{MemoryCache: NewMemoryCache(zap.NewNop(), 0, nil)}
	c := NewResilientCache(repo, BreakerConfig{}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "fp", []byte(`{"ok":true}`), time.Now())))
	entry, err := c.Get(ctx, core.FeatureIntel, "fp")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(entry.Payload))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
}
