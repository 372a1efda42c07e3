package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/valkey"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type shiftingClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *shiftingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *shiftingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

func newValkeyTestCache(t *testing.T) (*ValkeyCache, *valkey.Client, *shiftingClock) {
	t.Helper()
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := valkey.NewClient(valkey.Config{
		Address:        addr,
		KeyPrefix:      "costopt-test-" + uuid.NewString(),
		ConnectTimeout: time.Second,
	})
	if err != nil {
		t.Skip("No valkey")
	}

	clock := &shiftingClock{}
	c := NewValkeyCache(client, zap.NewNop(), clock.Now)
	t.Cleanup(func() {
		_, _ = c.Clear(context.Background(), "")
		client.Close()
	})
	return c, client, clock
}

func TestValkeyCache_GetCountsHits(t *testing.T) {
	c, _, clock := newValkeyTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, core.NewCacheEntry(core.FeatureIntel, "fp-1", []byte(`{"risk_level":"high"}`), clock.Now())))

	entry, err := c.Get(ctx, core.FeatureIntel, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.HitCount)
	assert.JSONEq(t, `{"risk_level":"high"}`, string(entry.Payload))

	entry, err = c.Get(ctx, core.FeatureIntel, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.HitCount)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
}

func TestValkeyCache_MissDoesNotCreateKey(t *testing.T) {
	c, client, _ := newValkeyTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, core.FeatureLibrary, "absent")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	key := c.entryKey(core.FeatureLibrary, "absent")
	n, err := client.Inner().Do(ctx, client.Inner().B().Exists().Key(key).Build()).AsInt64()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValkeyCache_ExpiredEntryNotTouched(t *testing.T) {
	c, client, clock := newValkeyTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, core.NewCacheEntry(core.FeatureControl, "fp-2", []byte(`{}`), clock.Now())))
	clock.Advance(core.FeatureControl.TTL() + time.Second)

	_, err := c.Get(ctx, core.FeatureControl, "fp-2")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	key := c.entryKey(core.FeatureControl, "fp-2")
	hits, err := client.Inner().Do(ctx, client.Inner().B().Hget().Key(key).Field(fieldHitCount).Build()).ToString()
	require.NoError(t, err)
	assert.Equal(t, "0", hits)

	ttl, err := client.Inner().Do(ctx, client.Inner().B().Pttl().Key(key).Build()).AsInt64()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
