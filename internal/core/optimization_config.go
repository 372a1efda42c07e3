package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	minPrefilterThreshold = 0
	maxPrefilterThreshold = 100
	minDedupSimilarity    = 0.50
	maxDedupSimilarity    = 0.95
	minBatchSize          = 2
	maxBatchSize          = 10
)

// DefaultCriticalKeywords force a candidate through the pre-filter regardless of its score
var DefaultCriticalKeywords = []string{
	"data breach",
	"ransomware",
	"cyberattack",
	"sanction",
	"fraud",
	"bankruptcy",
	"class action",
	"product recall",
	"regulatory fine",
	"enforcement action",
	"insolvency",
	"outage",
}

// OptimizationConfig is one organization's cost-optimization settings
type OptimizationConfig struct {
	EnablePrefilter    bool     `json:"enable_prefilter" mapstructure:"enable_prefilter"`
	PrefilterThreshold int      `json:"prefilter_threshold" mapstructure:"prefilter_threshold"`
	EnableDedup        bool     `json:"enable_dedup" mapstructure:"enable_dedup"`
	DedupSimilarity    float64  `json:"dedup_similarity" mapstructure:"dedup_similarity"`
	EnableBatch        bool     `json:"enable_batch" mapstructure:"enable_batch"`
	BatchSize          int      `json:"batch_size" mapstructure:"batch_size"`
	EnableIntelCache   bool     `json:"enable_intel_cache" mapstructure:"enable_intel_cache"`
	EnableLibraryCache bool     `json:"enable_library_cache" mapstructure:"enable_library_cache"`
	EnableControlCache bool     `json:"enable_control_cache" mapstructure:"enable_control_cache"`
	CriticalKeywords   []string `json:"critical_keywords" mapstructure:"critical_keywords"`
}

// DefaultOptimizationConfig returns the engine defaults used for missing fields
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		EnablePrefilter:    true,
		PrefilterThreshold: 30,
		EnableDedup:        true,
		DedupSimilarity:    0.7,
		EnableBatch:        true,
		BatchSize:          5,
		EnableIntelCache:   true,
		EnableLibraryCache: true,
		EnableControlCache: true,
		CriticalKeywords:   append([]string(nil), DefaultCriticalKeywords...),
	}
}

// ParseOptimizationConfig decodes a settings document over the defaults and clamps the result.
// Unknown fields are ignored. Each known field is decoded on its own: a field of the wrong
// type keeps its default while the others are applied, and the field errors are returned
// together with the config. A document that is not a JSON object yields the defaults.
func ParseOptimizationConfig(data []byte) (OptimizationConfig, error) {
	cfg := DefaultOptimizationConfig()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("failed to parse optimization config: %w", err)
	}

	fields := []struct {
		key    string
		decode func(json.RawMessage) error
	}{
		{"enable_prefilter", decodeInto(&cfg.EnablePrefilter)},
		{"prefilter_threshold", decodeInto(&cfg.PrefilterThreshold)},
		{"enable_dedup", decodeInto(&cfg.EnableDedup)},
		{"dedup_similarity", decodeInto(&cfg.DedupSimilarity)},
		{"enable_batch", decodeInto(&cfg.EnableBatch)},
		{"batch_size", decodeInto(&cfg.BatchSize)},
		{"enable_intel_cache", decodeInto(&cfg.EnableIntelCache)},
		{"enable_library_cache", decodeInto(&cfg.EnableLibraryCache)},
		{"enable_control_cache", decodeInto(&cfg.EnableControlCache)},
		{"critical_keywords", decodeInto(&cfg.CriticalKeywords)},
	}

	var errs []error
	for _, f := range fields {
		raw, ok := doc[f.key]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		if err := f.decode(raw); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", f.key, err))
		}
	}

	cfg = cfg.Normalize()
	if len(errs) > 0 {
		return cfg, fmt.Errorf("failed to parse optimization config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// decodeInto assigns dst only when raw decodes cleanly
func decodeInto[T any](dst *T) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// Normalize clamps every threshold and size into its valid range and cleans the keyword list.
// Persisted values are never trusted as-is.
func (c OptimizationConfig) Normalize() OptimizationConfig {
	c.PrefilterThreshold = clampInt(c.PrefilterThreshold, minPrefilterThreshold, maxPrefilterThreshold)
	if math.IsNaN(c.DedupSimilarity) {
		c.DedupSimilarity = DefaultOptimizationConfig().DedupSimilarity
	}
	c.DedupSimilarity = math.Min(math.Max(c.DedupSimilarity, minDedupSimilarity), maxDedupSimilarity)
	c.BatchSize = clampInt(c.BatchSize, minBatchSize, maxBatchSize)

	keywords := make([]string, 0, len(c.CriticalKeywords))
	seen := make(map[string]struct{}, len(c.CriticalKeywords))
	for _, kw := range c.CriticalKeywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, kw)
	}
	c.CriticalKeywords = keywords
	return c
}

// CacheEnabled reports whether caching is switched on for the feature
func (c OptimizationConfig) CacheEnabled(feature Feature) bool {
	switch feature {
	case FeatureIntel:
		return c.EnableIntelCache
	case FeatureLibrary:
		return c.EnableLibraryCache
	case FeatureControl:
		return c.EnableControlCache
	default:
		return false
	}
}

// EffectiveBatchSize is the flush size the aggregator should use
func (c OptimizationConfig) EffectiveBatchSize() int {
	if !c.EnableBatch {
		return 1
	}
	return c.BatchSize
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
