package core

import "errors"

var (
	// ErrCacheMiss is returned when a cache entry is absent or expired
	ErrCacheMiss = errors.New("cache entry not found")
	// ErrUnknownFeature is returned for feature names outside intel, library and control
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrStoreUnavailable is returned while the cache store is considered down
	ErrStoreUnavailable = errors.New("cache store unavailable")
	// ErrMissingResult is returned to a batch item the upstream response did not cover
	ErrMissingResult = errors.New("upstream returned no result for item")
	// ErrMalformedResult is returned to a batch item whose upstream result is unusable
	ErrMalformedResult = errors.New("upstream returned malformed result for item")
	// ErrAggregatorStopped is returned when submitting to a stopped batch aggregator
	ErrAggregatorStopped = errors.New("batch aggregator is stopped")
	// ErrUpstreamFailed wraps a failed upstream call; every item of the batch receives it
	ErrUpstreamFailed = errors.New("upstream call failed")
	// ErrNoUpstream is returned when no AI provider is configured
	ErrNoUpstream = errors.New("no upstream AI provider configured")
)
