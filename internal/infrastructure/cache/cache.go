// Package cache provides the route result cache and its storage backends.
package cache

import (
	"context"
	"time"
)

// Backend is a byte-level key/value store with per-entry expiry. Backends
// report their own failures; RouteCache decides how to degrade.
//
// An entry read after its TTL has elapsed must be reported as a miss even
// if the backend has not physically evicted it yet.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key and reports whether a live entry existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Clear removes every key matching pattern. Only "*", "prefix*" and
	// exact keys need to be supported.
	Clear(ctx context.Context, pattern string) error
}

// MetricsRecorder receives cache counters.
type MetricsRecorder interface {
	IncrementCounter(name string, tags map[string]string)
}

// Metric names emitted by RouteCache.
const (
	MetricCacheHits   = "cache_hits"
	MetricCacheMisses = "cache_misses"
	MetricCacheErrors = "cache_errors"
)

// Backend kinds accepted by configuration.
const (
	KindMemory   = "memory"
	KindBadger   = "badger"
	KindRedis    = "redis"
	KindDynamoDB = "dynamodb"
)

// prefixOf returns the literal prefix of a trailing-wildcard pattern and
// whether the pattern is a wildcard at all.
func prefixOf(pattern string) (string, bool) {
	if pattern == "*" {
		return "", true
	}
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		return pattern[:n-1], true
	}
	return pattern, false
}
