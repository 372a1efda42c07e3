package settings

import (
	"context"
	"fmt"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/spf13/viper"
)

// StaticSource serves one configuration to every organization
type StaticSource struct {
	cfg core.OptimizationConfig
}

// NewStaticSource creates a source holding cfg, clamped once
func NewStaticSource(cfg core.OptimizationConfig) *StaticSource {
	return &StaticSource{cfg: cfg.Normalize()}
}

// NewStaticSourceFromViper decodes the given key over the engine defaults
func NewStaticSourceFromViper(v *viper.Viper, key string) (*StaticSource, error) {
	cfg := core.DefaultOptimizationConfig()
	if v.IsSet(key) {
		// a configured list replaces the defaults instead of overlaying them element-wise
		if v.IsSet(key + ".critical_keywords") {
			cfg.CriticalKeywords = nil
		}
		if err := v.UnmarshalKey(key, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}
	return NewStaticSource(cfg), nil
}

// Load returns a copy of the static configuration
func (s *StaticSource) Load(ctx context.Context, organizationID string) (core.OptimizationConfig, error) {
	cfg := s.cfg
	cfg.CriticalKeywords = append([]string(nil), s.cfg.CriticalKeywords...)
	return cfg, nil
}
