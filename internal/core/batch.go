package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBatchWait bounds how long the first item of a batch waits for company
const DefaultBatchWait = 2 * time.Second

// ResultWriter persists a demultiplexed result before it is handed to the waiting caller
type ResultWriter func(ctx context.Context, item *BatchItem, payload []byte)

// BatchItem is one approved candidate waiting for an upstream result
type BatchItem struct {
	Request     *Request
	Fingerprint string
	Config      OptimizationConfig
	SubmittedAt time.Time

	resultCh chan BatchResult
}

// NewBatchItem prepares a candidate for submission
func NewBatchItem(req *Request, fingerprint string, cfg OptimizationConfig) *BatchItem {
	return &BatchItem{
		Request:     req,
		Fingerprint: fingerprint,
		Config:      cfg,
		SubmittedAt: time.Now(),
		resultCh:    make(chan BatchResult, 1),
	}
}

// BatchResult is what a caller eventually receives for its item
type BatchResult struct {
	Payload   []byte
	BatchID   string
	BatchSize int
	Err       error
}

// Future resolves to the item's result once its batch has been dispatched
type Future struct {
	ch <-chan BatchResult
}

// Wait blocks until the result is ready or ctx is done
func (f *Future) Wait(ctx context.Context) (*BatchResult, error) {
	select {
	case res := <-f.ch:
		return &res, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type openBatch struct {
	id    string
	items []*BatchItem
	timer *time.Timer
	// limit is fixed by the item that opened the batch
	limit int
}

// BatchAggregator keeps one open batch per feature and flushes it on size or age
type BatchAggregator struct {
	upstream Upstream
	write    ResultWriter
	logger   *zap.Logger
	metrics  Metrics
	maxWait  time.Duration

	mu      sync.Mutex
	open    map[Feature]*openBatch
	stopped bool

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewBatchAggregator creates an aggregator dispatching to upstream
func NewBatchAggregator(upstream Upstream, write ResultWriter, logger *zap.Logger, metrics Metrics, maxWait time.Duration) *BatchAggregator {
	if maxWait <= 0 {
		maxWait = DefaultBatchWait
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if write == nil {
		write = func(context.Context, *BatchItem, []byte) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchAggregator{
		upstream: upstream,
		write:    write,
		logger:   logger,
		metrics:  metrics,
		maxWait:  maxWait,
		open:     make(map[Feature]*openBatch),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit adds the item to its feature's open batch. The first item of a batch sets its flush
// size. With batching disabled in the item's configuration the item is dispatched on its own
// right away.
func (a *BatchAggregator) Submit(feature Feature, item *BatchItem) (*Future, error) {
	if item.resultCh == nil {
		item.resultCh = make(chan BatchResult, 1)
	}
	future := &Future{ch: item.resultCh}
	limit := item.Config.EffectiveBatchSize()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil, ErrAggregatorStopped
	}

	if limit <= 1 {
		a.dispatchLocked(feature, &openBatch{id: uuid.NewString(), items: []*BatchItem{item}})
		return future, nil
	}

	batch := a.open[feature]
	if batch == nil {
		batch = &openBatch{id: uuid.NewString(), limit: limit}
		id := batch.id
		batch.timer = time.AfterFunc(a.maxWait, func() { a.flushExpired(feature, id) })
		a.open[feature] = batch
	}
	batch.items = append(batch.items, item)

	if len(batch.items) >= batch.limit {
		delete(a.open, feature)
		batch.timer.Stop()
		a.dispatchLocked(feature, batch)
	}
	return future, nil
}

// Pending returns the number of items waiting in the feature's open batch
func (a *BatchAggregator) Pending(feature Feature) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if batch := a.open[feature]; batch != nil {
		return len(batch.items)
	}
	return 0
}

// Stop flushes every open batch and waits for in-flight upstream calls.
// If ctx ends first, in-flight calls are cancelled.
func (a *BatchAggregator) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	for feature, batch := range a.open {
		delete(a.open, feature)
		batch.timer.Stop()
		a.dispatchLocked(feature, batch)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-done
		return ctx.Err()
	}
}

func (a *BatchAggregator) flushExpired(feature Feature, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch := a.open[feature]
	if batch == nil || batch.id != id {
		return
	}
	delete(a.open, feature)
	a.dispatchLocked(feature, batch)
}

func (a *BatchAggregator) dispatchLocked(feature Feature, batch *openBatch) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.run(feature, batch)
	}()
}

func (a *BatchAggregator) run(feature Feature, batch *openBatch) {
	size := len(batch.items)
	a.metrics.BatchFlushed(feature, size)
	a.logger.Debug("Dispatching batch",
		zap.String("batch_id", batch.id),
		zap.String("feature", feature.String()),
		zap.Int("batch_size", size))

	requests := make([]*Request, size)
	for i, item := range batch.items {
		requests[i] = item.Request
	}

	start := time.Now()
	results, err := a.call(feature, requests)
	if err != nil {
		a.metrics.UpstreamCall(feature, "error")
		a.logger.Error("Upstream call failed",
			zap.String("batch_id", batch.id),
			zap.String("feature", feature.String()),
			zap.Int("batch_size", size),
			zap.Error(err))
		for _, item := range batch.items {
			item.resultCh <- BatchResult{BatchID: batch.id, BatchSize: size, Err: fmt.Errorf("%w: %w", ErrUpstreamFailed, err)}
		}
		return
	}
	a.metrics.UpstreamCall(feature, "ok")

	failed := 0
	for i, item := range batch.items {
		payload, perr := resultAt(results, i)
		if perr != nil {
			failed++
			a.logger.Warn("Discarding unusable batch result",
				zap.String("batch_id", batch.id),
				zap.String("feature", feature.String()),
				zap.Int("position", i),
				zap.Error(perr))
			item.resultCh <- BatchResult{BatchID: batch.id, BatchSize: size, Err: perr}
			continue
		}
		a.write(a.ctx, item, payload)
		item.resultCh <- BatchResult{Payload: clonePayload(payload), BatchID: batch.id, BatchSize: size}
	}

	a.logger.Info("Batch processed",
		zap.String("batch_id", batch.id),
		zap.String("feature", feature.String()),
		zap.Int("batch_size", size),
		zap.Int("failed_items", failed),
		zap.Duration("processing_time", time.Since(start)))
}

func (a *BatchAggregator) call(feature Feature, requests []*Request) (results []json.RawMessage, err error) {
	if a.upstream == nil {
		return nil, ErrNoUpstream
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upstream panicked: %v", r)
		}
	}()
	return a.upstream.AnalyzeBatch(a.ctx, feature, requests)
}

// resultAt pairs the i-th input with the i-th upstream result. Results must be JSON objects or arrays.
func resultAt(results []json.RawMessage, i int) ([]byte, error) {
	if i >= len(results) {
		return nil, fmt.Errorf("%w at position %d", ErrMissingResult, i)
	}
	raw := bytes.TrimSpace(results[i])
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, fmt.Errorf("%w at position %d", ErrMalformedResult, i)
	}
	if raw[0] != '{' && raw[0] != '[' {
		return nil, fmt.Errorf("%w at position %d: not an object", ErrMalformedResult, i)
	}
	return raw, nil
}
