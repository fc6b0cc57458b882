package cache

import (
	"context"
	"encoding/json"
	"time"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/infrastructure/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// KeyPrefix namespaces every route entry.
const KeyPrefix = "route:"

// Key derives the cache key for a directed station pair. The key is case
// preserving and A->B differs from B->A.
func Key(source, destination string) string {
	return KeyPrefix + source + ":" + destination
}

// RouteCache stores computed routes on top of a Backend.
//
// Backend failures never surface to callers: a failed read is a miss and a
// failed write means "not cached". The cache can slow a request down but it
// can never make one fail.
type RouteCache struct {
	backend    Backend
	breaker    *gobreaker.CircuitBreaker
	metrics    MetricsRecorder
	defaultTTL time.Duration
	logger     *zap.Logger
}

// RouteCacheOption configures a RouteCache.
type RouteCacheOption func(*RouteCache)

// WithBreaker routes backend calls through a circuit breaker so a dead
// backend is skipped instead of timing out on every request.
func WithBreaker(config resilience.BreakerConfig) RouteCacheOption {
	return func(c *RouteCache) {
		c.breaker = resilience.NewBreaker(config, nil, c.logger)
	}
}

// WithMetrics reports hits, misses and errors.
func WithMetrics(m MetricsRecorder) RouteCacheOption {
	return func(c *RouteCache) {
		c.metrics = m
	}
}

// NewRouteCache wraps backend. defaultTTL applies when Put is given ttl <= 0.
func NewRouteCache(backend Backend, defaultTTL time.Duration, logger *zap.Logger, opts ...RouteCacheOption) *RouteCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RouteCache{
		backend:    backend,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the TTL used when callers do not pass one.
func (c *RouteCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the cached route for key. Backend errors and undecodable
// payloads are logged and reported as a miss.
func (c *RouteCache) Get(ctx context.Context, key string) (*transit.RouteResult, bool) {
	var (
		data  []byte
		found bool
	)
	err := c.execute(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Error("Cache get error", zap.String("key", key), zap.Error(err))
		c.count(MetricCacheErrors, "get")
		c.count(MetricCacheMisses, "")
		return nil, false
	}
	if !found {
		c.logger.Debug("Cache miss", zap.String("key", key))
		c.count(MetricCacheMisses, "")
		return nil, false
	}

	var route transit.RouteResult
	if err := json.Unmarshal(data, &route); err != nil {
		c.logger.Error("Cache payload corrupt", zap.String("key", key), zap.Error(err))
		c.count(MetricCacheErrors, "decode")
		c.count(MetricCacheMisses, "")
		return nil, false
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	c.count(MetricCacheHits, "")
	return &route, true
}

// Put stores value under key. The payload is fully serialized before the
// backend is touched, so an entry is never partially written.
func (c *RouteCache) Put(ctx context.Context, key string, value *transit.RouteResult, ttl time.Duration) bool {
	if value == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Cache set error", zap.String("key", key), zap.Error(err))
		c.count(MetricCacheErrors, "encode")
		return false
	}

	if err := c.execute(func() error { return c.backend.Set(ctx, key, data, ttl) }); err != nil {
		c.logger.Error("Cache set error", zap.String("key", key), zap.Error(err))
		c.count(MetricCacheErrors, "set")
		return false
	}

	c.logger.Debug("Cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return true
}

// InvalidateAll drops every route entry.
func (c *RouteCache) InvalidateAll(ctx context.Context) bool {
	if err := c.execute(func() error { return c.backend.Clear(ctx, KeyPrefix+"*") }); err != nil {
		c.logger.Error("Cache clear error", zap.Error(err))
		c.count(MetricCacheErrors, "clear")
		return false
	}
	c.logger.Info("Cache cleared")
	return true
}

// Delete removes key and reports whether it existed.
func (c *RouteCache) Delete(ctx context.Context, key string) bool {
	var existed bool
	err := c.execute(func() error {
		var err error
		existed, err = c.backend.Delete(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Error("Cache delete error", zap.String("key", key), zap.Error(err))
		c.count(MetricCacheErrors, "delete")
		return false
	}
	c.logger.Debug("Cache delete", zap.String("key", key), zap.Bool("deleted", existed))
	return existed
}

func (c *RouteCache) execute(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (c *RouteCache) count(name, op string) {
	if c.metrics == nil {
		return
	}
	var tags map[string]string
	if op != "" {
		tags = map[string]string{"operation": op}
	}
	c.metrics.IncrementCounter(name, tags)
}
