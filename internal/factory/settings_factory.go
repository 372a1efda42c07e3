package factory

import (
	"fmt"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/settings"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

// SettingsFactory creates the per-organization settings source
type SettingsFactory struct {
	cfg      *config.Config
	settings config.SettingsConfig
	logger   *zap.Logger
}

// NewSettingsFactory creates a new settings factory. The static source decodes its
// values from the raw configuration.
func NewSettingsFactory(cfg *config.Config, sc *config.ServiceConfig, logger *zap.Logger) *SettingsFactory {
	return &SettingsFactory{
		cfg:      cfg,
		settings: sc.Settings,
		logger:   logger,
	}
}

// CreateSettingsSource creates the source named by settings.source
func (f *SettingsFactory) CreateSettingsSource() (core.SettingsSource, error) {
	settingsCfg := f.settings

	switch settingsCfg.Source {
	case "static":
		src, err := settings.NewStaticSourceFromViper(f.cfg.GetViper(), "optimization")
		if err != nil {
			return nil, err
		}
		return src, nil
	case "file":
		f.logger.Info("Reading organization settings from directory", zap.String("dir", settingsCfg.Dir))
		return settings.NewFileSource(settingsCfg.Dir, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported settings source: %s", settingsCfg.Source)
	}
}
