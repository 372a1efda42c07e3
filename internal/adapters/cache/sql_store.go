package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

// sqlStore holds the queries shared by the SQL backends. Timestamps are stored as unix
// milliseconds and compared against the injected clock, never the database's own clock.
type sqlStore struct {
	db          *sql.DB
	logger      *zap.Logger
	clock       core.Clock
	upsertQuery string
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newSQLStore(db *sql.DB, logger *zap.Logger, clock core.Clock, upsertQuery string) *sqlStore {
	if clock == nil {
		clock = core.SystemClock
	}
	return &sqlStore{
		db:          db,
		logger:      logger,
		clock:       clock,
		upsertQuery: upsertQuery,
		stopCh:      make(chan struct{}),
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Get retrieves a live entry and increments its hit count
func (s *sqlStore) Get(ctx context.Context, feature core.Feature, fingerprint string) (*core.CacheEntry, error) {
	now := toMillis(s.clock())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE ai_result_cache
		SET hit_count = hit_count + 1, last_accessed_at = ?
		WHERE feature = ? AND fingerprint = ? AND expires_at > ?
	`, now, string(feature), fingerprint, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record cache hit: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, core.ErrCacheMiss
	}

	entry := &core.CacheEntry{Feature: feature, Fingerprint: fingerprint}
	var createdAt, expiresAt, lastAccessedAt int64
	err = tx.QueryRowContext(ctx, `
		SELECT payload, created_at, expires_at, hit_count, last_accessed_at
		FROM ai_result_cache
		WHERE feature = ? AND fingerprint = ?
	`, string(feature), fingerprint).Scan(&entry.Payload, &createdAt, &expiresAt, &entry.HitCount, &lastAccessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cache hit: %w", err)
	}

	entry.CreatedAt = fromMillis(createdAt)
	entry.ExpiresAt = fromMillis(expiresAt)
	entry.LastAccessedAt = fromMillis(lastAccessedAt)
	return entry, nil
}

// Set upserts an entry and resets its hit count
func (s *sqlStore) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, s.upsertQuery,
		string(entry.Feature),
		entry.Fingerprint,
		entry.Payload,
		toMillis(entry.CreatedAt),
		toMillis(entry.ExpiresAt),
		toMillis(entry.LastAccessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// Stats summarizes live entries per feature
func (s *sqlStore) Stats(ctx context.Context) (*core.CacheStats, error) {
	now := s.clock()
	soon := toMillis(now.Add(core.ExpiringSoonWindow))

	rows, err := s.db.QueryContext(ctx, `
		SELECT feature, COUNT(*), COALESCE(SUM(hit_count), 0),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM ai_result_cache
		WHERE expires_at > ?
		GROUP BY feature
	`, soon, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	stats := core.NewCacheStats()
	for rows.Next() {
		var feature string
		var count, hits, expiring int64
		if err := rows.Scan(&feature, &count, &hits, &expiring); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats.ByFeature[core.Feature(feature)] = core.FeatureStats{Count: count, TotalHits: hits}
		stats.TotalEntries += count
		stats.ExpiringWithin7Days += expiring
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}

// Clear deletes the feature's entries, or every entry when feature is empty
func (s *sqlStore) Clear(ctx context.Context, feature core.Feature) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if feature == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM ai_result_cache`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM ai_result_cache WHERE feature = ?`, string(feature))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}

// Cleanup removes expired entries
func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM ai_result_cache
		WHERE expires_at <= ?
	`, toMillis(s.clock()))
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

func (s *sqlStore) stop(name string) {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close "+name+" database", zap.Error(err))
		}
	})
}
