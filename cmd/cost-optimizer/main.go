package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/di"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (searches default locations if empty)")
	flag.Parse()

	// Build the dependency injection container
	container, err := di.BuildContainer(*configFile)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	sc *config.ServiceConfig,
	servers []ports.Server,
	service *core.OptimizerService,
	provider ports.Provider,
	cacheRepo *cache.ResilientCache,
) error {
	defer logger.Sync()

	started := make([]ports.Server, 0, len(servers))
	for _, server := range servers {
		if err := server.Start(); err != nil {
			logger.Error("Failed to start server", zap.Error(err))
			shutdown(logger, sc, started, service, provider, cacheRepo)
			return err
		}
		started = append(started, server)
	}

	logger.Info("AI cost optimizer running",
		zap.String("provider", provider.Name()),
		zap.String("cache", sc.Cache.Type),
		zap.String("settings", sc.Settings.Source))

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	shutdown(logger, sc, started, service, provider, cacheRepo)
	logger.Info("Shutdown complete")
	return nil
}

// shutdown stops intake first, then drains batches, then releases the backends
func shutdown(
	logger *zap.Logger,
	sc *config.ServiceConfig,
	servers []ports.Server,
	service *core.OptimizerService,
	provider ports.Provider,
	cacheRepo *cache.ResilientCache,
) {
	ctx, cancel := context.WithTimeout(context.Background(), sc.Server.ShutdownTimeout)
	defer cancel()

	for _, server := range servers {
		if err := server.Stop(ctx); err != nil {
			logger.Error("Failed to stop server", zap.Error(err))
		}
	}

	if err := service.Stop(ctx); err != nil {
		logger.Error("Failed to drain open batches", zap.Error(err))
	}

	if err := provider.Close(); err != nil {
		logger.Error("Failed to close upstream provider", zap.Error(err))
	}

	cacheRepo.Stop()
}
