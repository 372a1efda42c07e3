package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticSettings struct {
	cfg core.OptimizationConfig
	err error
}

func (s staticSettings) Load(context.Context, string) (core.OptimizationConfig, error) {
	return s.cfg, s.err
}

type countingUpstream struct {
	calls atomic.Int32
	delay time.Duration
}

func (u *countingUpstream) AnalyzeBatch(ctx context.Context, feature core.Feature, items []*core.Request) ([]json.RawMessage, error) {
	u.calls.Add(1)
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		b, _ := json.Marshal(map[string]any{"summary": item.Text, "feature": feature})
		out[i] = b
	}
	return out, nil
}

// failingRepo fails every operation
type failingRepo struct{}

var errStoreDown = errors.New("connection refused")

func (failingRepo) Get(context.Context, core.Feature, string) (*core.CacheEntry, error) {
	return nil, errStoreDown
}
func (failingRepo) Set(context.Context, *core.CacheEntry) error { return errStoreDown }
func (failingRepo) Stats(context.Context) (*core.CacheStats, error) {
	return nil, errStoreDown
}
func (failingRepo) Clear(context.Context, core.Feature) (int64, error) { return 0, errStoreDown }
func (failingRepo) Cleanup(context.Context) error { return errStoreDown }

type harness struct {
	svc      *core.OptimizerService
	repo     *cache.MemoryCache
	upstream *countingUpstream
	clock    *manualClock
	stats    *core.StatsManager
}

func newHarness(t *testing.T, cfg core.OptimizationConfig, opts core.ServiceOptions) *harness {
	t.Helper()
	clock := &manualClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := cache.NewMemoryCache(zap.NewNop(), 0, clock.Now)
	upstream := &countingUpstream{}
	window := core.NewContentWindow(core.DefaultWindowSize, clock.Now)
	opts.Clock = clock.Now
	svc := core.NewOptimizerService(upstream, repo, staticSettings{cfg: cfg}, nil, window, zap.NewNop(), nil, opts)
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
		repo.Stop()
	})
	return &harness{
		svc:      svc,
		repo:     repo,
		upstream: upstream,
		clock:    clock,
		stats:    core.NewStatsManager(repo, window, zap.NewNop()),
	}
}

func directConfig() core.OptimizationConfig {
	cfg := core.DefaultOptimizationConfig()
	cfg.EnableBatch = false
	return cfg
}

const (
	articleA = "regulatory breach and penalty expose supplier risk across the european logistics network"
	articleB = "regulatory breach and penalty expose supplier risk across the logistics network"
	articleC = "quarterly cafeteria menu update"
)

func TestOptimizerService_PrefilterDedupCacheScenario(t *testing.T) {
	cfg := directConfig()
	cfg.EnablePrefilter = true
	cfg.PrefilterThreshold = 50
	cfg.EnableDedup = true
	cfg.DedupSimilarity = 0.8
	h := newHarness(t, cfg, core.ServiceOptions{})
	ctx := context.Background()

	resA, err := h.svc.Process(ctx, &core.Request{
		OrganizationID: "org-1",
		Feature:        core.FeatureIntel,
		Params:         map[string]any{"article_id": "a-1", "source": "reuters"},
		Text:           articleA,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionCall, resA.Decision.Action)
	require.NotNil(t, resA.Decision.Score)
	assert.GreaterOrEqual(t, *resA.Decision.Score, 50)
	assert.NotEmpty(t, resA.Payload)

	resB, err := h.svc.Process(ctx, &core.Request{
		OrganizationID: "org-1",
		Feature:        core.FeatureIntel,
		Params:         map[string]any{"article_id": "b-7", "source": "bloomberg"},
		Text:           articleB,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionReuse, resB.Decision.Action)
	assert.Equal(t, resA.Decision.Fingerprint, resB.Decision.DuplicateOf)
	assert.GreaterOrEqual(t, resB.Decision.Similarity, 0.8)
	assert.JSONEq(t, string(resA.Payload), string(resB.Payload))

	resC, err := h.svc.Process(ctx, &core.Request{
		OrganizationID: "org-1",
		Feature:        core.FeatureIntel,
		Params:         map[string]any{"article_id": "c-2"},
		Text:           articleC,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionSkip, resC.Decision.Action)
	assert.Empty(t, resC.Decision.Fingerprint)
	assert.Nil(t, resC.Payload)

	assert.Equal(t, int32(1), h.upstream.calls.Load())

	stats, err := h.stats.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, core.FeatureStats{Count: 1, TotalHits: 1}, stats.ByFeature[core.FeatureIntel])
}

func TestOptimizerService_CriticalKeywordLogged(t *testing.T) {
	cfg := directConfig()
	cfg.PrefilterThreshold = 90
	obs, logs := observer.New(zapcore.DebugLevel)
	repo := cache.NewMemoryCache(zap.NewNop(), 0, nil)
	svc := core.NewOptimizerService(&countingUpstream{}, repo, staticSettings{cfg: cfg}, nil, nil, zap.New(obs), nil, core.ServiceOptions{})
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
		repo.Stop()
	})

	decision, err := svc.Evaluate(context.Background(), &core.Request{
		OrganizationID: "org-1",
		Feature:        core.FeatureIntel,
		Text:           "Cafeteria supplier hit by RANSOMWARE",
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionCall, decision.Action)
	assert.Equal(t, "ransomware", decision.CriticalMatch)

	matched := logs.FilterMessage("Critical keyword matched").All()
	require.Len(t, matched, 1)
	assert.Equal(t, "ransomware", matched[0].ContextMap()["keyword"])
}

func TestOptimizerService_ExactRepeatIsCacheHit(t *testing.T) {
	h := newHarness(t, directConfig(), core.ServiceOptions{})
	ctx := context.Background()
	req := &core.Request{
		Feature: core.FeatureLibrary,
		Params:  map[string]any{"document": "vendor-policy.pdf", "tags": []any{"esg", "risk"}},
		Text:    articleA,
	}

	_, err := h.svc.Process(ctx, req)
	require.NoError(t, err)

	decision, err := h.svc.Evaluate(ctx, &core.Request{
		Feature: core.FeatureLibrary,
		Params:  map[string]any{"tags": []any{"RISK", "esg"}, "document": "Vendor-Policy.pdf"},
		Text:    articleA,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionReuse, decision.Action)
	assert.Empty(t, decision.DuplicateOf)
	assert.NotEmpty(t, decision.CachedPayload)
	assert.Equal(t, int32(1), h.upstream.calls.Load())
}

func TestOptimizerService_EntriesExpire(t *testing.T) {
	cfg := directConfig()
	cfg.EnableDedup = false
	h := newHarness(t, cfg, core.ServiceOptions{})
	ctx := context.Background()
	req := &core.Request{Feature: core.FeatureIntel, Params: map[string]any{"article_id": "a-1"}, Text: articleA}

	_, err := h.svc.Process(ctx, req)
	require.NoError(t, err)

	h.clock.Advance(7*24*time.Hour - time.Minute)
	decision, err := h.svc.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, core.ActionReuse, decision.Action)

	h.clock.Advance(2 * time.Minute)
	decision, err = h.svc.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, core.ActionCall, decision.Action)
}

func TestOptimizerService_DisabledFeatureCacheNeverWrites(t *testing.T) {
	cfg := directConfig()
	cfg.EnableIntelCache = false
	h := newHarness(t, cfg, core.ServiceOptions{})
	ctx := context.Background()
	req := &core.Request{Feature: core.FeatureIntel, Params: map[string]any{"article_id": "a-1"}, Text: articleA}

	_, err := h.svc.Process(ctx, req)
	require.NoError(t, err)
	_, err = h.svc.Process(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.upstream.calls.Load())
	stats, err := h.stats.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Equal(t, 0, h.svc.Window().Len(core.FeatureIntel))
}

func TestOptimizerService_CacheFailureFailsOpen(t *testing.T) {
	upstream := &countingUpstream{}
	svc := core.NewOptimizerService(upstream, failingRepo{}, staticSettings{cfg: directConfig()}, nil, nil, zap.NewNop(), nil, core.ServiceOptions{})
	defer svc.Stop(context.Background())

	res, err := svc.Process(context.Background(), &core.Request{
		Feature: core.FeatureControl,
		Params:  map[string]any{"control_id": "AC-2"},
		Text:    articleA,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionCall, res.Decision.Action)
	assert.NotEmpty(t, res.Payload)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestOptimizerService_SettingsFailureUsesDefaults(t *testing.T) {
	upstream := &countingUpstream{}
	settings := staticSettings{err: errors.New("settings store offline")}
	svc := core.NewOptimizerService(upstream, nil, settings, nil, nil, zap.NewNop(), nil, core.ServiceOptions{})
	defer svc.Stop(context.Background())

	decision, err := svc.Evaluate(context.Background(), &core.Request{Feature: core.FeatureIntel, Text: articleC})
	require.NoError(t, err)
	assert.Equal(t, core.ActionSkip, decision.Action)
}

func TestOptimizerService_UnknownFeature(t *testing.T) {
	h := newHarness(t, directConfig(), core.ServiceOptions{})

	_, err := h.svc.Evaluate(context.Background(), &core.Request{Feature: "billing", Text: articleA})
	assert.ErrorIs(t, err, core.ErrUnknownFeature)
}

func TestOptimizerService_BatchesConcurrentCandidates(t *testing.T) {
	cfg := core.DefaultOptimizationConfig()
	cfg.EnableDedup = false
	cfg.BatchSize = 3
	h := newHarness(t, cfg, core.ServiceOptions{BatchWait: time.Hour})

	var wg sync.WaitGroup
	results := make([]*core.Result, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Process(context.Background(), &core.Request{
				Feature: core.FeatureIntel,
				Params:  map[string]any{"article_id": i},
				Text:    articleA,
			})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, core.ActionBatch, results[i].Decision.Action)
		assert.Equal(t, results[0].BatchID, results[i].BatchID)
	}
	assert.Equal(t, int32(1), h.upstream.calls.Load())
}

func TestOptimizerService_CoalescesIdenticalRequests(t *testing.T) {
	cfg := directConfig()
	h := newHarness(t, cfg, core.ServiceOptions{Coalesce: true})
	h.upstream.delay = 100 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Process(context.Background(), &core.Request{
				Feature: core.FeatureIntel,
				Params:  map[string]any{"article_id": "a-1"},
				Text:    articleA,
			})
			assert.NoError(t, err)
			assert.NotEmpty(t, res.Payload)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, h.upstream.calls.Load(), int32(2))
}

func TestStatsManager_ClearScoping(t *testing.T) {
	cfg := directConfig()
	cfg.EnableDedup = false
	h := newHarness(t, cfg, core.ServiceOptions{})
	ctx := context.Background()

	for _, f := range core.Features {
		_, err := h.svc.Process(ctx, &core.Request{Feature: f, Params: map[string]any{"id": "x"}, Text: articleA})
		require.NoError(t, err)
	}

	res, err := h.stats.ClearCache(ctx, "library")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)

	stats, err := h.stats.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalEntries)
	assert.Equal(t, int64(0), stats.ByFeature[core.FeatureLibrary].Count)

	_, err = h.stats.ClearCache(ctx, "billing")
	assert.ErrorIs(t, err, core.ErrUnknownFeature)

	res, err = h.stats.ClearCache(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Deleted)
}
