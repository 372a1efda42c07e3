package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// repoContract runs the behaviour every backend must share
func repoContract(t *testing.T, newRepo func(clock core.Clock) core.CacheRepository) {
	ctx := context.Background()

	t.Run("ExpiryBoundary", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "fp", []byte(`{"a":1}`), clock.Now())))

		clock.Advance(7*24*time.Hour - time.Hour)
		entry, err := repo.Get(ctx, core.FeatureIntel, "fp")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(entry.Payload))

		clock.Advance(time.Hour + time.Second)
		_, err = repo.Get(ctx, core.FeatureIntel, "fp")
		assert.ErrorIs(t, err, core.ErrCacheMiss)
	})

	t.Run("HitCountAndUpsertReset", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureLibrary, "fp", []byte(`{"v":1}`), clock.Now())))

		for i := 1; i <= 3; i++ {
			entry, err := repo.Get(ctx, core.FeatureLibrary, "fp")
			require.NoError(t, err)
			assert.Equal(t, int64(i), entry.HitCount)
		}

		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureLibrary, "fp", []byte(`{"v":2}`), clock.Now())))
		entry, err := repo.Get(ctx, core.FeatureLibrary, "fp")
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.HitCount)
		assert.JSONEq(t, `{"v":2}`, string(entry.Payload))
	})

	t.Run("FeaturesArePartitions", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "fp", []byte(`{}`), clock.Now())))

		_, err := repo.Get(ctx, core.FeatureControl, "fp")
		assert.ErrorIs(t, err, core.ErrCacheMiss)
	})

	t.Run("StatsCountLiveEntries", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		start := clock.Now()

		// intel expires in 3 days, library in 40 days
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "soon", []byte(`{}`), start.Add(-4*24*time.Hour))))
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureLibrary, "later", []byte(`{}`), start.Add(10*24*time.Hour))))
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureControl, "gone", []byte(`{}`), start.Add(-8*24*time.Hour))))
		_, err := repo.Get(ctx, core.FeatureIntel, "soon")
		require.NoError(t, err)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalEntries)
		assert.Equal(t, int64(1), stats.ExpiringWithin7Days)
		assert.Equal(t, core.FeatureStats{Count: 1, TotalHits: 1}, stats.ByFeature[core.FeatureIntel])
		assert.Equal(t, core.FeatureStats{Count: 1}, stats.ByFeature[core.FeatureLibrary])
		assert.Equal(t, core.FeatureStats{}, stats.ByFeature[core.FeatureControl])
	})

	t.Run("ClearScoping", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		for _, f := range core.Features {
			require.NoError(t, repo.Set(ctx, core.NewCacheEntry(f, "a", []byte(`{}`), clock.Now())))
			require.NoError(t, repo.Set(ctx, core.NewCacheEntry(f, "b", []byte(`{}`), clock.Now())))
		}

		deleted, err := repo.Clear(ctx, core.FeatureIntel)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, err = repo.Get(ctx, core.FeatureLibrary, "a")
		assert.NoError(t, err)

		deleted, err = repo.Clear(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), deleted)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalEntries)
	})

	t.Run("CleanupRemovesExpired", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(clock.Now)
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "old", []byte(`{}`), clock.Now())))
		require.NoError(t, repo.Set(ctx, core.NewCacheEntry(core.FeatureLibrary, "new", []byte(`{}`), clock.Now())))

		clock.Advance(8 * 24 * time.Hour)
		require.NoError(t, repo.Cleanup(ctx))

		deleted, err := repo.Clear(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestMemoryCache_Contract(t *testing.T) {
	repoContract(t, func(clock core.Clock) core.CacheRepository {
		c := NewMemoryCache(zap.NewNop(), 0, clock)
		t.Cleanup(c.Stop)
		return c
	})
}

func TestMemoryCache_PayloadIsCopied(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(zap.NewNop(), 0, clock.Now)
	defer c.Stop()
	ctx := context.Background()

	payload := []byte(`{"a":1}`)
	require.NoError(t, c.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "fp", payload, clock.Now())))
	payload[2] = 'X'

	entry, err := c.Get(ctx, core.FeatureIntel, "fp")
	require.NoError(t, err)
	entry.Payload[2] = 'Y'

	again, err := c.Get(ctx, core.FeatureIntel, "fp")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again.Payload))
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Millisecond, nil)
	c.Stop()
	c.Stop()
}
