package core

import (
	"context"
	"encoding/json"
)

// Upstream is the external collaborator that performs paid AI calls
type Upstream interface {
	// AnalyzeBatch sends every item in one upstream call and returns one result per item, in order
	AnalyzeBatch(ctx context.Context, feature Feature, items []*Request) ([]json.RawMessage, error)
}

// CacheRepository stores AI results partitioned by feature
type CacheRepository interface {
	// Get returns a live entry and records the hit. Returns ErrCacheMiss if absent or expired.
	Get(ctx context.Context, feature Feature, fingerprint string) (*CacheEntry, error)

	// Set upserts an entry, replacing any previous entry with the same feature and fingerprint
	Set(ctx context.Context, entry *CacheEntry) error

	// Stats summarizes live entries without touching hit counts
	Stats(ctx context.Context) (*CacheStats, error)

	// Clear deletes every entry of the feature, or every entry when feature is empty
	Clear(ctx context.Context, feature Feature) (int64, error)

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// SettingsSource supplies the per-organization optimization configuration
type SettingsSource interface {
	// Load returns the organization's configuration, already clamped
	Load(ctx context.Context, organizationID string) (OptimizationConfig, error)
}

// Scorer rates how worthwhile a candidate is for AI analysis
type Scorer interface {
	Score(text string, criticalKeywords []string) (int, error)
}

// Metrics receives engine counters. Implementations must be safe for concurrent use.
type Metrics interface {
	Decision(feature Feature, action Action)
	UpstreamCall(feature Feature, outcome string)
	FailOpen(feature Feature, stage string)
	BatchFlushed(feature Feature, size int)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) Decision(Feature, Action) {}
func (NopMetrics) UpstreamCall(Feature, string) {}
func (NopMetrics) FailOpen(Feature, string) {}
func (NopMetrics) BatchFlushed(Feature, int) {}
