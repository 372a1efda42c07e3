package factory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadService(t *testing.T, yaml string) (*config.Config, *config.ServiceConfig, error) {
	t.Helper()
	v := config.NewEmptyViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	cfg := config.NewFromViper(v)
	sc, err := cfg.GetService()
	return cfg, sc, err
}

func TestCacheFactory_Memory(t *testing.T) {
	_, sc, err := loadService(t, "cache:\n  type: memory\n  cleanup_frequency: 1h\n")
	require.NoError(t, err)

	repo, err := NewCacheFactory(sc, zap.NewNop()).CreateCacheRepository(core.SystemClock)
	require.NoError(t, err)
	defer repo.Stop()

	entry := core.NewCacheEntry(core.FeatureControl, "fp", []byte(`{"ok":true}`), time.Now())
	require.NoError(t, repo.Set(context.Background(), entry))
	got, err := repo.Get(context.Background(), core.FeatureControl, "fp")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got.Payload))
}

func TestCacheFactory_InvalidTypeRejectedByValidation(t *testing.T) {
	_, sc, err := loadService(t, "cache:\n  type: memcached\n")
	assert.Nil(t, sc)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestSettingsFactory_Static(t *testing.T) {
	cfg, sc, err := loadService(t, `
optimization:
  batch_size: 3
  critical_keywords: ["embargo"]
`)
	require.NoError(t, err)

	src, err := NewSettingsFactory(cfg, sc, zap.NewNop()).CreateSettingsSource()
	require.NoError(t, err)

	oc, err := src.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, oc.BatchSize)
	assert.Equal(t, []string{"embargo"}, oc.CriticalKeywords)
}

func TestSettingsFactory_File(t *testing.T) {
	cfg, sc, err := loadService(t, "settings:\n  source: file\n  dir: "+t.TempDir()+"\n")
	require.NoError(t, err)

	src, err := NewSettingsFactory(cfg, sc, zap.NewNop()).CreateSettingsSource()
	require.NoError(t, err)

	oc, err := src.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultOptimizationConfig(), oc)
}
