package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ServiceOptions tunes the optimizer service
type ServiceOptions struct {
	// BatchWait bounds how long an open batch waits before it is flushed
	BatchWait time.Duration
	// Coalesce shares one in-flight pipeline between identical concurrent requests in this process
	Coalesce bool
	// Clock stamps cache entries; defaults to the wall clock
	Clock Clock
}

// OptimizerService decides, for each candidate, whether to skip it, reuse a stored result,
// batch it or call the AI provider
type OptimizerService struct {
	settings SettingsSource
	cache    *FeatureCache
	window   *ContentWindow
	scorer   Scorer
	batcher  *BatchAggregator
	logger   *zap.Logger
	metrics  Metrics
	coalesce bool
	group    singleflight.Group
}

// NewOptimizerService creates a new optimizer service
func NewOptimizerService(
	upstream Upstream,
	repo CacheRepository,
	settings SettingsSource,
	scorer Scorer,
	window *ContentWindow,
	logger *zap.Logger,
	metrics Metrics,
	opts ServiceOptions,
) *OptimizerService {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}
	if window == nil {
		window = NewContentWindow(DefaultWindowSize, opts.Clock)
	}

	s := &OptimizerService{
		settings: settings,
		cache:    NewFeatureCache(repo, opts.Clock, logger),
		window:   window,
		scorer:   scorer,
		logger:   logger,
		metrics:  metrics,
		coalesce: opts.Coalesce,
	}
	s.batcher = NewBatchAggregator(upstream, s.storeResult, logger, metrics, opts.BatchWait)
	return s
}

// Evaluate runs the decision pipeline without dispatching any upstream work.
// A reuse decision carries the cached payload and counts as a cache hit.
func (s *OptimizerService) Evaluate(ctx context.Context, req *Request) (*Decision, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if !req.Feature.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, req.Feature)
	}

	cfg := s.loadConfig(ctx, req.OrganizationID)
	decision := s.decide(ctx, cfg, req)
	s.metrics.Decision(req.Feature, decision.Action)

	s.logger.Debug("Evaluated candidate",
		zap.String("organization", req.OrganizationID),
		zap.String("feature", req.Feature.String()),
		zap.String("action", string(decision.Action)),
		zap.String("reason", decision.Reason))
	return decision, nil
}

// Process runs the full pipeline and yields the result payload. Skipped candidates
// return a result without payload.
func (s *OptimizerService) Process(ctx context.Context, req *Request) (*Result, error) {
	decision, err := s.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	switch decision.Action {
	case ActionSkip:
		return &Result{Decision: decision}, nil
	case ActionReuse:
		return &Result{Decision: decision, Payload: decision.CachedPayload}, nil
	}

	if !s.coalesce {
		return s.submitAndWait(ctx, req, decision)
	}

	key := req.Feature.String() + ":" + decision.Fingerprint
	ch := s.group.DoChan(key, func() (any, error) {
		return s.submitAndWait(context.WithoutCancel(ctx), req, decision)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := *res.Val.(*Result)
		shared.Decision = decision
		return &shared, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop flushes open batches and waits for in-flight upstream calls
func (s *OptimizerService) Stop(ctx context.Context) error {
	return s.batcher.Stop(ctx)
}

// Window exposes the dedup window so administrative clears can reach it
func (s *OptimizerService) Window() *ContentWindow {
	return s.window
}

func (s *OptimizerService) decide(ctx context.Context, cfg OptimizationConfig, req *Request) *Decision {
	feature := req.Feature
	decision := &Decision{Feature: feature, config: cfg}

	verdict := RunPrefilter(cfg, s.scorer, req.Text)
	decision.Score = verdict.Score
	decision.CriticalMatch = verdict.CriticalMatch
	if verdict.Err != nil {
		s.failOpen(feature, "prefilter", verdict.Err)
	}
	if verdict.CriticalMatch != "" {
		s.logger.Debug("Critical keyword matched",
			zap.String("feature", feature.String()),
			zap.String("keyword", verdict.CriticalMatch))
	}
	if !verdict.Proceed {
		decision.Action = ActionSkip
		decision.Reason = fmt.Sprintf("score %d below threshold %d", *verdict.Score, cfg.PrefilterThreshold)
		return decision
	}

	decision.Fingerprint = Fingerprint(feature, req.Params)

	entry, err := s.cache.Get(ctx, cfg, feature, decision.Fingerprint)
	switch {
	case err == nil:
		decision.Action = ActionReuse
		decision.CachedPayload = entry.Payload
		decision.Reason = "cache hit"
		s.logger.Debug("Cache hit", zap.String("feature", feature.String()), zap.String("fingerprint", decision.Fingerprint))
		return decision
	case !errors.Is(err, ErrCacheMiss):
		s.failOpen(feature, "cache_read", err)
	}

	dedup := RunDedup(cfg, s.window, feature, req.Text)
	if dedup.Err != nil {
		s.failOpen(feature, "dedup", dedup.Err)
	}
	if match := dedup.Match; match != nil && match.Fingerprint != decision.Fingerprint {
		entry, err := s.cache.Get(ctx, cfg, feature, match.Fingerprint)
		switch {
		case err == nil:
			decision.Action = ActionReuse
			decision.CachedPayload = entry.Payload
			decision.DuplicateOf = match.Fingerprint
			decision.Similarity = match.Similarity
			decision.Reason = "near-duplicate of recent content"
			return decision
		case !errors.Is(err, ErrCacheMiss):
			s.failOpen(feature, "dedup_read", err)
		}
	}

	if cfg.EnableBatch {
		decision.Action = ActionBatch
		decision.Reason = "queued for batched analysis"
	} else {
		decision.Action = ActionCall
		decision.Reason = "direct analysis"
	}
	return decision
}

func (s *OptimizerService) submitAndWait(ctx context.Context, req *Request, decision *Decision) (*Result, error) {
	item := NewBatchItem(req, decision.Fingerprint, decision.config)
	future, err := s.batcher.Submit(req.Feature, item)
	if err != nil {
		return nil, err
	}
	res, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Decision: decision, Payload: res.Payload, BatchID: res.BatchID}, nil
}

// storeResult writes a fresh upstream result back to the cache and the dedup window
func (s *OptimizerService) storeResult(ctx context.Context, item *BatchItem, payload []byte) {
	feature := item.Request.Feature
	stored, err := s.cache.Put(ctx, item.Config, feature, item.Fingerprint, payload)
	if err != nil {
		s.failOpen(feature, "cache_write", err)
		return
	}
	if stored {
		s.window.Append(feature, item.Fingerprint, item.Request.Text)
	}
}

func (s *OptimizerService) loadConfig(ctx context.Context, organizationID string) OptimizationConfig {
	if s.settings == nil {
		return DefaultOptimizationConfig()
	}
	cfg, err := s.settings.Load(ctx, organizationID)
	if err != nil {
		s.logger.Warn("Falling back to default optimization config",
			zap.String("organization", organizationID),
			zap.Error(err))
		return DefaultOptimizationConfig()
	}
	return cfg.Normalize()
}

func (s *OptimizerService) failOpen(feature Feature, stage string, err error) {
	s.metrics.FailOpen(feature, stage)
	s.logger.Warn("Failing open",
		zap.String("feature", feature.String()),
		zap.String("stage", stage),
		zap.Error(err))
}
