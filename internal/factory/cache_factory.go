package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/cache"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/valkey"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    config.CacheConfig
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory from the validated service configuration
func NewCacheFactory(sc *config.ServiceConfig, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    sc.Cache,
		logger: logger,
	}
}

// CreateCacheRepository creates the configured backend wrapped in a circuit breaker
func (f *CacheFactory) CreateCacheRepository(clock core.Clock) (*cache.ResilientCache, error) {
	cacheCfg := f.cfg

	backend, err := f.createBackend(cacheCfg, clock)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Cache backend ready", zap.String("type", cacheCfg.Type))
	return cache.NewResilientCache(backend, cache.BreakerConfig{
		MaxFailures: uint32(cacheCfg.BreakerMaxFailures),
		OpenTimeout: cacheCfg.BreakerOpenTimeout,
	}, f.logger), nil
}

func (f *CacheFactory) createBackend(cacheCfg config.CacheConfig, clock core.Clock) (ports.ManagedCache, error) {
	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency, clock), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		sqliteCache, err := cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency, clock)
		if err != nil {
			return nil, err
		}
		return sqliteCache, nil
	case "mysql":
		mysqlCache, err := cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency, clock)
		if err != nil {
			return nil, err
		}
		return mysqlCache, nil
	case "valkey":
		client, err := valkey.NewClient(valkey.Config{
			Address:   cacheCfg.Valkey.Address,
			Password:  cacheCfg.Valkey.Password,
			DB:        cacheCfg.Valkey.DB,
			KeyPrefix: cacheCfg.Valkey.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return &ownedValkeyCache{
			ValkeyCache: cache.NewValkeyCache(client, f.logger, clock),
			client:      client,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// ownedValkeyCache closes the client it was built with
type ownedValkeyCache struct {
	*cache.ValkeyCache
	client *valkey.Client
}

func (c *ownedValkeyCache) Stop() {
	c.client.Close()
}
