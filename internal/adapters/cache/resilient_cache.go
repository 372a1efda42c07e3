package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls when a failing store is taken out of the hot path
type BreakerConfig struct {
	// MaxFailures consecutive errors open the breaker
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// ResilientCache guards a repository with a circuit breaker. While the breaker is open
// every call fails fast with core.ErrStoreUnavailable so callers can fail open.
type ResilientCache struct {
	repo    core.CacheRepository
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilientCache wraps repo
func NewResilientCache(repo core.CacheRepository, cfg BreakerConfig, logger *zap.Logger) *ResilientCache {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "cache-store",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Cache circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &ResilientCache{
		repo:    repo,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// State returns the breaker state, for health reporting
func (c *ResilientCache) State() string {
	return c.breaker.State().String()
}

func (c *ResilientCache) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return v, err
}

// Get retrieves a live entry through the breaker
func (c *ResilientCache) Get(ctx context.Context, feature core.Feature, fingerprint string) (*core.CacheEntry, error) {
	v, err := c.execute(func() (interface{}, error) {
		return c.repo.Get(ctx, feature, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.CacheEntry), nil
}

// Set upserts an entry through the breaker
func (c *ResilientCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.repo.Set(ctx, entry)
	})
	return err
}

// Stats is not guarded by the breaker
func (c *ResilientCache) Stats(ctx context.Context) (*core.CacheStats, error) {
	return c.repo.Stats(ctx)
}

// Clear is not guarded by the breaker
func (c *ResilientCache) Clear(ctx context.Context, feature core.Feature) (int64, error) {
	return c.repo.Clear(ctx, feature)
}

// Cleanup delegates to the wrapped repository
func (c *ResilientCache) Cleanup(ctx context.Context) error {
	return c.repo.Cleanup(ctx)
}

// Stop stops the wrapped repository's background work, if it has any
func (c *ResilientCache) Stop() {
	if s, ok := c.repo.(interface{ Stop() }); ok {
		s.Stop()
	}
}
