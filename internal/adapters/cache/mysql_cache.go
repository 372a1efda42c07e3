package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

const mysqlUpsert = `
	INSERT INTO ai_result_cache (feature, fingerprint, payload, created_at, expires_at, hit_count, last_accessed_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)
	ON DUPLICATE KEY UPDATE
		payload = VALUES(payload),
		created_at = VALUES(created_at),
		expires_at = VALUES(expires_at),
		hit_count = 0,
		last_accessed_at = VALUES(last_accessed_at)
`

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	*sqlStore
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration, clock core.Clock) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ai_result_cache (
			feature VARCHAR(32) NOT NULL,
			fingerprint CHAR(64) NOT NULL,
			payload MEDIUMBLOB NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			hit_count BIGINT NOT NULL DEFAULT 0,
			last_accessed_at BIGINT NOT NULL,
			PRIMARY KEY (feature, fingerprint),
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{sqlStore: newSQLStore(db, logger, clock, mysqlUpsert)}
	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache, nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	c.stop("MySQL")
}
