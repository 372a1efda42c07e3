package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/factory"
	"github.com/mikey/ai-cost-optimizer/internal/logging"
	"github.com/mikey/ai-cost-optimizer/internal/metrics"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
)

// BuildContainer creates the dependency injection container of the server.
// An empty configPath searches the default configuration locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewWithFile(configPath)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(sc *config.ServiceConfig) (*zap.Logger, error) {
		return logging.InitLogger(sc.Logging)
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(reg *prometheus.Registry) core.Metrics {
		return metrics.NewRecorder(reg)
	}); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}
	if err := provideUpstream(container); err != nil {
		return nil, err
	}

	// Register transports
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.ServerFactory,
		service *core.OptimizerService,
		stats *core.StatsManager,
		repo *cache.ResilientCache,
		reg *prometheus.Registry,
	) []ports.Server {
		return f.CreateServers(service, stats, repo, reg)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
