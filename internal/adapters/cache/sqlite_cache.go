package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

const sqliteUpsert = `
	INSERT INTO ai_result_cache (feature, fingerprint, payload, created_at, expires_at, hit_count, last_accessed_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)
	ON CONFLICT(feature, fingerprint) DO UPDATE SET
		payload = excluded.payload,
		created_at = excluded.created_at,
		expires_at = excluded.expires_at,
		hit_count = 0,
		last_accessed_at = excluded.last_accessed_at
`

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	*sqlStore
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration, clock core.Clock) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ai_result_cache (
			feature TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at INTEGER NOT NULL,
			PRIMARY KEY (feature, fingerprint)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ai_result_cache_expires_at ON ai_result_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{sqlStore: newSQLStore(db, logger, clock, sqliteUpsert)}
	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache, nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLiteCache) Stop() {
	c.stop("SQLite")
}
