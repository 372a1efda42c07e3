package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/logging"
)

// CLIFlags contains the persistent flags of the CLI application
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Overrides applied on top of the configuration file when non-empty
	Provider  string
	CacheType string
	Settings  string
}

// BuildCLIContainer creates the container for one CLI command. The upstream provider is
// only registered when withUpstream is set, so offline commands need no credentials.
func BuildCLIContainer(flags *CLIFlags, withUpstream bool) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewWithFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		applyOverrides(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func() core.Metrics { return core.NopMetrics{} }); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}
	if withUpstream {
		if err := provideUpstream(container); err != nil {
			return nil, err
		}
	}

	return container, nil
}

func applyOverrides(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	if flags.Provider != "" {
		v.Set("llm.provider", flags.Provider)
	}
	if flags.CacheType != "" {
		v.Set("cache.type", flags.CacheType)
	}
	if flags.Settings != "" {
		v.Set("settings.source", flags.Settings)
	}
	// a lone CLI candidate never fills a batch
	v.Set("engine.batch_wait", "50ms")
}
