package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StatsManager serves the administrative statistics and clearing operations.
// It never takes part in the evaluation hot path.
type StatsManager struct {
	repo   CacheRepository
	window *ContentWindow
	logger *zap.Logger
}

// NewStatsManager creates a stats manager over the cache repository and dedup window
func NewStatsManager(repo CacheRepository, window *ContentWindow, logger *zap.Logger) *StatsManager {
	return &StatsManager{repo: repo, window: window, logger: logger}
}

// GetCacheStats returns a snapshot of live entries. Hit counts are left untouched.
func (m *StatsManager) GetCacheStats(ctx context.Context) (*CacheStats, error) {
	stats, err := m.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect cache stats: %w", err)
	}
	return stats, nil
}

// ClearCache deletes the named feature's entries, or everything when feature is empty
func (m *StatsManager) ClearCache(ctx context.Context, feature string) (*ClearResult, error) {
	var target Feature
	if feature != "" {
		f, err := ParseFeature(feature)
		if err != nil {
			return nil, err
		}
		target = f
	}

	deleted, err := m.repo.Clear(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to clear cache: %w", err)
	}
	if m.window != nil {
		m.window.Clear(target)
	}

	scope := "all"
	if target != "" {
		scope = target.String()
	}
	m.logger.Info("Cache cleared", zap.String("scope", scope), zap.Int64("deleted", deleted))
	return &ClearResult{Deleted: deleted}, nil
}
