package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/factory"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"github.com/mikey/ai-cost-optimizer/internal/utils"
)

type serviceParams struct {
	dig.In

	Provider ports.Provider `optional:"true"`
	Repo     *cache.ResilientCache
	Settings core.SettingsSource
	Window   *core.ContentWindow
	Config   *config.ServiceConfig
	Logger   *zap.Logger
	Metrics  core.Metrics
}

func newOptimizerService(p serviceParams) *core.OptimizerService {
	var upstream core.Upstream
	if p.Provider != nil {
		upstream = p.Provider
	}
	return core.NewOptimizerService(
		upstream,
		p.Repo,
		p.Settings,
		core.NewHeuristicScorer(),
		p.Window,
		p.Logger,
		p.Metrics,
		core.ServiceOptions{
			BatchWait: p.Config.Engine.BatchWait,
			Coalesce:  p.Config.Engine.Coalesce,
		},
	)
}

// provideEngine registers everything below the transports. Config, logger and metrics
// are registered by the caller.
func provideEngine(container *dig.Container) error {
	constructors := []interface{}{
		func(cfg *config.Config) (*config.ServiceConfig, error) {
			return cfg.GetService()
		},
		factory.NewTextProcessorFactory,
		factory.NewCacheFactory,
		factory.NewSettingsFactory,
		func(f *factory.TextProcessorFactory) *utils.TextProcessor {
			return f.CreateTextProcessor()
		},
		func(f *factory.TextProcessorFactory, tp *utils.TextProcessor) *prompt.Builder {
			return f.CreatePromptBuilder(tp)
		},
		func(f *factory.CacheFactory) (*cache.ResilientCache, error) {
			return f.CreateCacheRepository(core.SystemClock)
		},
		func(f *factory.SettingsFactory) (core.SettingsSource, error) {
			return f.CreateSettingsSource()
		},
		func(sc *config.ServiceConfig) *core.ContentWindow {
			return core.NewContentWindow(sc.Engine.WindowSize, core.SystemClock)
		},
		newOptimizerService,
		func(repo *cache.ResilientCache, window *core.ContentWindow, logger *zap.Logger) *core.StatsManager {
			return core.NewStatsManager(repo, window, logger)
		},
	}
	for _, c := range constructors {
		if err := container.Provide(c); err != nil {
			return err
		}
	}
	return nil
}

// provideUpstream registers the configured AI provider
func provideUpstream(container *dig.Container) error {
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.LLMFactory) (ports.Provider, error) {
		return f.CreateProvider(context.Background())
	})
}
