package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetService_Defaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	sc, err := cfg.GetService()
	require.NoError(t, err)
	assert.Equal(t, "bedrock", sc.LLM.Provider)
	assert.Equal(t, "memory", sc.Cache.Type)
	assert.Equal(t, time.Hour, sc.Cache.CleanupFrequency)
	assert.Equal(t, 5, sc.Cache.BreakerMaxFailures)
	assert.Equal(t, 2*time.Second, sc.Engine.BatchWait)
	assert.False(t, sc.Engine.Coalesce)
	assert.Equal(t, 500, sc.Engine.WindowSize)
	assert.Equal(t, "static", sc.Settings.Source)
	assert.False(t, sc.Ingest.Enabled)
}

func TestGetService_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
		want string
	}{
		{"unknown provider", "llm.provider", "watson", "Provider"},
		{"unknown cache type", "cache.type", "memcached", "Type"},
		{"unknown settings source", "settings.source", "vault", "Source"},
		{"zero window", "dedup.window_size", 0, "WindowSize"},
		{"bad duration", "engine.batch_wait", "soon", "engine.batch_wait"},
		{"mysql without dsn", "cache.mysql_dsn", "", "MySQLDSN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewEmptyViper()
			v.Set(tt.key, tt.val)
			if tt.key == "cache.mysql_dsn" {
				v.Set("cache.type", "mysql")
			}
			_, err := NewFromViper(v).GetService()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
cache:
  type: sqlite
  sqlite_path: /tmp/cache.db
engine:
  coalesce: true
optimization:
  batch_size: 3
`), 0o600))

	cfg, err := NewWithFile(path)
	require.NoError(t, err)

	sc, err := cfg.GetService()
	require.NoError(t, err)
	assert.Equal(t, "openai", sc.LLM.Provider)
	assert.Equal(t, "sqlite", sc.Cache.Type)
	assert.True(t, sc.Engine.Coalesce)
	assert.Equal(t, 3, cfg.GetInt("optimization.batch_size"))
	assert.Equal(t, "gpt-4o-mini", cfg.GetOpenAI().ModelName)
}
