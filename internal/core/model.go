package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Feature identifies one of the AI-consuming subsystems. It partitions cache and window state.
type Feature string

const (
	FeatureIntel   Feature = "intel"
	FeatureLibrary Feature = "library"
	FeatureControl Feature = "control"
)

// Features lists every known feature in a stable order
var Features = []Feature{FeatureIntel, FeatureLibrary, FeatureControl}

// ExpiringSoonWindow is the horizon used by the expiring-soon statistics counter
const ExpiringSoonWindow = 7 * 24 * time.Hour

var featureTTLs = map[Feature]time.Duration{
	FeatureIntel:   7 * 24 * time.Hour,
	FeatureLibrary: 30 * 24 * time.Hour,
	FeatureControl: 7 * 24 * time.Hour,
}

// ParseFeature converts a raw feature name into a Feature
func ParseFeature(raw string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(raw)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, raw)
	}
	return f, nil
}

// Valid reports whether the feature is one of the known features
func (f Feature) Valid() bool {
	_, ok := featureTTLs[f]
	return ok
}

// TTL returns the fixed lifespan of cache entries for the feature
func (f Feature) TTL() time.Duration {
	return featureTTLs[f]
}

func (f Feature) String() string {
	return string(f)
}

// Clock returns the current time. Components take one so expiry can be tested.
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// CacheEntry is a stored AI result
type CacheEntry struct {
	Feature        Feature
	Fingerprint    string
	Payload        []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
	HitCount       int64
	LastAccessedAt time.Time
}

// NewCacheEntry builds an entry whose expiry is derived from the feature TTL.
// The payload is copied so the caller keeps ownership of its slice.
func NewCacheEntry(feature Feature, fingerprint string, payload []byte, now time.Time) *CacheEntry {
	return &CacheEntry{
		Feature:        feature,
		Fingerprint:    fingerprint,
		Payload:        clonePayload(payload),
		CreatedAt:      now,
		ExpiresAt:      now.Add(feature.TTL()),
		LastAccessedAt: now,
	}
}

// Expired reports whether the entry is logically absent at the given instant
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Clone returns a deep copy of the entry
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	c.Payload = clonePayload(e.Payload)
	return &c
}

func clonePayload(p []byte) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// FeatureStats holds per-feature counters over live entries
type FeatureStats struct {
	Count     int64 `json:"count"`
	TotalHits int64 `json:"totalHits"`
}

// CacheStats is a snapshot of cache health
type CacheStats struct {
	TotalEntries        int64                    `json:"totalEntries"`
	ByFeature           map[Feature]FeatureStats `json:"byFeature"`
	ExpiringWithin7Days int64                    `json:"expiringWithin7Days"`
}

// NewCacheStats returns an empty snapshot with every feature present
func NewCacheStats() *CacheStats {
	stats := &CacheStats{ByFeature: make(map[Feature]FeatureStats, len(Features))}
	for _, f := range Features {
		stats.ByFeature[f] = FeatureStats{}
	}
	return stats
}

// Observe folds one stored entry into the snapshot. Expired entries are ignored.
func (s *CacheStats) Observe(feature Feature, expiresAt time.Time, hitCount int64, now time.Time) {
	if !now.Before(expiresAt) {
		return
	}
	fs := s.ByFeature[feature]
	fs.Count++
	fs.TotalHits += hitCount
	s.ByFeature[feature] = fs
	s.TotalEntries++
	if !expiresAt.After(now.Add(ExpiringSoonWindow)) {
		s.ExpiringWithin7Days++
	}
}

// ClearResult reports how many stored entries an administrative clear removed
type ClearResult struct {
	Deleted int64 `json:"deleted"`
}

// Action is the engine's decision for a candidate
type Action string

const (
	ActionSkip  Action = "skip"
	ActionReuse Action = "reuse"
	ActionBatch Action = "batch"
	ActionCall  Action = "call"
)

// Request is a candidate unit of work submitted by the AI-calling collaborator
type Request struct {
	OrganizationID string         `json:"organization_id"`
	Feature        Feature        `json:"feature"`
	Params         map[string]any `json:"params"`
	Text           string         `json:"text"`
}

// Decision describes what the engine chose for a request and why
type Decision struct {
	Action        Action          `json:"action"`
	Feature       Feature         `json:"feature"`
	Fingerprint   string          `json:"fingerprint,omitempty"`
	Score         *int            `json:"score,omitempty"`
	CriticalMatch string          `json:"critical_match,omitempty"`
	DuplicateOf   string          `json:"duplicate_of,omitempty"`
	Similarity    float64         `json:"similarity,omitempty"`
	CachedPayload json.RawMessage `json:"cached_payload,omitempty"`
	Reason        string          `json:"reason"`

	config OptimizationConfig
}

// Result is the outcome of running a request through the whole pipeline
type Result struct {
	Decision *Decision       `json:"decision"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	BatchID  string          `json:"batch_id,omitempty"`
}
