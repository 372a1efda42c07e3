package factory

import (
	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/httpapi"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/ingest"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServerFactory creates the network transports in front of the engine
type ServerFactory struct {
	cfg    *config.ServiceConfig
	logger *zap.Logger
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.ServiceConfig, logger *zap.Logger) *ServerFactory {
	return &ServerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateServers returns the HTTP API and, when ingest.enabled is set, the SMTP listener
func (f *ServerFactory) CreateServers(
	service *core.OptimizerService,
	stats *core.StatsManager,
	repo *cache.ResilientCache,
	registry *prometheus.Registry,
) []ports.Server {
	servers := []ports.Server{
		httpapi.NewServer(service, stats, httpapi.Options{
			ListenAddress: f.cfg.Server.ListenAddress,
			Gatherer:      registry,
			BreakerState:  repo.State,
		}, f.logger.Named("http")),
	}

	if f.cfg.Ingest.Enabled {
		servers = append(servers, ingest.NewSMTPServer(service, ingest.Config{
			ListenAddress:   f.cfg.Ingest.ListenAddress,
			Domain:          f.cfg.Ingest.Domain,
			MaxMessageBytes: int64(f.cfg.Ingest.MaxMessageBytes),
			ProcessTimeout:  f.cfg.Ingest.ProcessTimeout,
		}, f.logger.Named("ingest")))
	}
	return servers
}
