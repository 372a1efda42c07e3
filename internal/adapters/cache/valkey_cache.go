package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/valkey"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	valkeylib "github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
)

const (
	fieldFeature        = "feature"
	fieldPayload        = "payload"
	fieldCreatedAt      = "created_at"
	fieldExpiresAt      = "expires_at"
	fieldHitCount       = "hit_count"
	fieldLastAccessedAt = "last_accessed_at"

	scanCount = 200
)

// ValkeyCache stores each entry as a hash that expires natively at the entry's expiry.
// Expiry is also checked against the injected clock on read.
type ValkeyCache struct {
	client *valkey.Client
	prefix string
	logger *zap.Logger
	clock  core.Clock
}

// NewValkeyCache creates a cache over an existing client. The client stays owned by the caller.
func NewValkeyCache(client *valkey.Client, logger *zap.Logger, clock core.Clock) *ValkeyCache {
	if clock == nil {
		clock = core.SystemClock
	}
	return &ValkeyCache{
		client: client,
		prefix: client.Key("cache") + ":",
		logger: logger,
		clock:  clock,
	}
}

func (c *ValkeyCache) inner() valkeylib.Client {
	return c.client.Inner()
}

func (c *ValkeyCache) entryKey(feature core.Feature, fingerprint string) string {
	return c.prefix + string(feature) + ":" + fingerprint
}

// recordHit reads the entry and counts the hit in one step, so a key that expires natively
// in between is never recreated without a TTL. Entries past expires_at (ARGV[1], unix ms)
// are reported as absent and left untouched.
var recordHit = valkeylib.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return nil
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires ~= nil then
  if expires <= tonumber(ARGV[1]) then
    return nil
  end
  redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
  redis.call('HSET', KEYS[1], 'last_accessed_at', ARGV[1])
end
return redis.call('HGETALL', KEYS[1])
`)

// Get retrieves a live entry and increments its hit count
func (c *ValkeyCache) Get(ctx context.Context, feature core.Feature, fingerprint string) (*core.CacheEntry, error) {
	key := c.entryKey(feature, fingerprint)
	now := c.clock()

	fields, err := recordHit.Exec(ctx, c.inner(), []string{key}, []string{strconv.FormatInt(toMillis(now), 10)}).AsStrMap()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrCacheMiss
	}

	entry, err := decodeEntry(feature, fingerprint, fields)
	if err != nil {
		return nil, err
	}
	if entry.Expired(now) {
		return nil, core.ErrCacheMiss
	}
	return entry, nil
}

// Set replaces the entry and schedules its expiry
func (c *ValkeyCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	key := c.entryKey(entry.Feature, entry.Fingerprint)
	b := c.inner().B()

	results := c.inner().DoMulti(ctx,
		b.Multi().Build(),
		b.Del().Key(key).Build(),
		b.Hset().Key(key).FieldValue().
			FieldValue(fieldFeature, string(entry.Feature)).
			FieldValue(fieldPayload, string(entry.Payload)).
			FieldValue(fieldCreatedAt, strconv.FormatInt(toMillis(entry.CreatedAt), 10)).
			FieldValue(fieldExpiresAt, strconv.FormatInt(toMillis(entry.ExpiresAt), 10)).
			FieldValue(fieldHitCount, "0").
			FieldValue(fieldLastAccessedAt, strconv.FormatInt(toMillis(entry.LastAccessedAt), 10)).
			Build(),
		b.Pexpireat().Key(key).MillisecondsTimestamp(toMillis(entry.ExpiresAt)).Build(),
		b.Exec().Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to store cache entry: %w", err)
		}
	}
	return nil
}

// Stats scans every entry and summarizes the live ones
func (c *ValkeyCache) Stats(ctx context.Context) (*core.CacheStats, error) {
	keys, err := c.scan(ctx, c.prefix+"*")
	if err != nil {
		return nil, err
	}

	now := c.clock()
	stats := core.NewCacheStats()
	if len(keys) == 0 {
		return stats, nil
	}

	cmds := make(valkeylib.Commands, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, c.inner().B().Hmget().Key(key).Field(fieldFeature, fieldExpiresAt, fieldHitCount).Build())
	}
	for i, res := range c.inner().DoMulti(ctx, cmds...) {
		values, err := res.ToArray()
		if err != nil || len(values) != 3 {
			// expired between SCAN and HMGET
			continue
		}
		feature, ferr := values[0].ToString()
		expiresRaw, eerr := values[1].ToString()
		if ferr != nil || eerr != nil {
			continue
		}
		expiresAt, err := strconv.ParseInt(expiresRaw, 10, 64)
		if err != nil {
			c.logger.Warn("Skipping cache entry with invalid expiry", zap.String("key", keys[i]))
			continue
		}
		var hits int64
		if raw, err := values[2].ToString(); err == nil {
			hits, _ = strconv.ParseInt(raw, 10, 64)
		}
		stats.Observe(core.Feature(feature), fromMillis(expiresAt), hits, now)
	}
	return stats, nil
}

// Clear deletes the feature's entries, or every entry when feature is empty
func (c *ValkeyCache) Clear(ctx context.Context, feature core.Feature) (int64, error) {
	pattern := c.prefix + "*"
	if feature != "" {
		pattern = c.prefix + string(feature) + ":*"
	}
	keys, err := c.scan(ctx, pattern)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for start := 0; start < len(keys); start += scanCount {
		end := start + scanCount
		if end > len(keys) {
			end = len(keys)
		}
		n, err := c.inner().Do(ctx, c.inner().B().Del().Key(keys[start:end]...).Build()).AsInt64()
		if err != nil {
			return deleted, fmt.Errorf("failed to clear cache: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// Cleanup is a no-op since Valkey expires keys natively
func (c *ValkeyCache) Cleanup(ctx context.Context) error {
	return nil
}

func (c *ValkeyCache) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		cmd := c.inner().B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		result, err := c.inner().Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache: %w", err)
		}
		keys = append(keys, result.Elements...)
		cursor = result.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func decodeEntry(feature core.Feature, fingerprint string, fields map[string]string) (*core.CacheEntry, error) {
	entry := &core.CacheEntry{
		Feature:     feature,
		Fingerprint: fingerprint,
		Payload:     []byte(fields[fieldPayload]),
	}
	millis := make(map[string]int64, 3)
	for _, name := range []string{fieldCreatedAt, fieldExpiresAt, fieldLastAccessedAt} {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s on cache entry: %w", name, err)
		}
		millis[name] = v
	}
	entry.HitCount, _ = strconv.ParseInt(fields[fieldHitCount], 10, 64)
	entry.CreatedAt = fromMillis(millis[fieldCreatedAt])
	entry.ExpiresAt = fromMillis(millis[fieldExpiresAt])
	entry.LastAccessedAt = fromMillis(millis[fieldLastAccessedAt])
	return entry, nil
}
