// Package orchestrator answers route requests: cache first, then a single
// shared computation per station pair, then write-through and history.
package orchestrator

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/infrastructure/cache"
	"commuteos-backend/internal/infrastructure/history"
	appErrors "commuteos-backend/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Request outcomes, used for span attributes and metrics.
const (
	OutcomeHit      = "hit"
	OutcomeComputed = "computed"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// MetricRouteRequests counts answered requests by outcome.
const MetricRouteRequests = "route_requests"

// RouteCache is the cache contract the orchestrator relies on.
// *cache.RouteCache satisfies it.
type RouteCache interface {
	Get(ctx context.Context, key string) (*transit.RouteResult, bool)
	Put(ctx context.Context, key string, value *transit.RouteResult, ttl time.Duration) bool
	InvalidateAll(ctx context.Context) bool
}

// HistoryDispatcher queues history records. *history.Sink satisfies it.
type HistoryDispatcher interface {
	Dispatch(rec history.Record) bool
}

// MetricsRecorder receives outcome counters.
type MetricsRecorder interface {
	IncrementCounter(name string, tags map[string]string)
}

// Config tunes the orchestrator.
type Config struct {
	// CacheTTL is applied to every write-through.
	CacheTTL time.Duration
	// ComputeTimeout bounds a shared computation. It runs detached from
	// any single caller so one disconnecting client cannot fail the rest.
	ComputeTimeout time.Duration
}

// Stats are in-process query counters.
type Stats struct {
	TotalQueries      int64
	CacheHits         int64
	CacheHitRate      float64 // percent, 2 decimals
	AvgResponseTimeMs float64 // 2 decimals
}

// Orchestrator implements the route request state machine.
type Orchestrator struct {
	cache    RouteCache
	provider ComputeProvider
	history  HistoryDispatcher
	metrics  MetricsRecorder
	config   Config
	group    singleflight.Group
	tracer   trace.Tracer
	now      func() time.Time
	logger   *zap.Logger

	totalQueries    atomic.Int64
	cacheHits       atomic.Int64
	totalResponseNs atomic.Int64
}

// New creates an orchestrator. history and metrics may be nil.
func New(routeCache RouteCache, provider ComputeProvider, historySink HistoryDispatcher, metrics MetricsRecorder, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 600 * time.Second
	}
	if config.ComputeTimeout <= 0 {
		config.ComputeTimeout = 30 * time.Second
	}
	return &Orchestrator{
		cache:    routeCache,
		provider: provider,
		history:  historySink,
		metrics:  metrics,
		config:   config,
		tracer:   otel.Tracer("commuteos/orchestrator"),
		now:      time.Now,
		logger:   logger,
	}
}

// GetRoute returns the route from source to destination.
//
// A cache hit is returned with Cached set. On a miss, concurrent callers for
// the same pair share one computation and one cache write. Not-found
// outcomes are neither cached nor recorded; any other failure is reported
// as unavailable and is not cached either.
func (o *Orchestrator) GetRoute(ctx context.Context, source, destination string) (*transit.RouteResult, error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.GetRoute",
		trace.WithAttributes(
			attribute.String("route.source", source),
			attribute.String("route.destination", destination),
		),
	)
	defer span.End()

	key := cache.Key(source, destination)

	if cached, ok := o.cache.Get(ctx, key); ok {
		cached.Cached = true
		o.logger.Info("Cache hit", zap.String("source", source), zap.String("destination", destination))
		o.answered(span, OutcomeHit, source, destination, cached, start)
		return cached, nil
	}

	o.logger.Info("Cache miss, computing route", zap.String("source", source), zap.String("destination", destination))

	ch := o.group.DoChan(key, func() (interface{}, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.ComputeTimeout)
		defer cancel()

		route, err := o.provider.Compute(computeCtx, source, destination)
		if err != nil {
			return nil, err
		}
		route.Cached = false
		o.cache.Put(computeCtx, key, route, o.config.CacheTTL)
		return route, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		o.fail(span, OutcomeError, ctx.Err())
		return nil, appErrors.NewUnavailable("Request cancelled before route was computed", ctx.Err())
	}

	if res.Err != nil {
		if appErrors.IsNotFound(res.Err) {
			o.logger.Warn("Route not found",
				zap.String("source", source),
				zap.String("destination", destination),
				zap.Error(res.Err),
			)
			o.fail(span, OutcomeNotFound, res.Err)
			return nil, res.Err
		}

		o.logger.Error("Routing service failed",
			zap.String("source", source),
			zap.String("destination", destination),
			zap.Error(res.Err),
		)
		o.fail(span, OutcomeError, res.Err)
		if appErrors.IsUnavailable(res.Err) {
			return nil, res.Err
		}
		return nil, appErrors.NewUnavailable("Routing service unavailable", res.Err)
	}

	route := res.Val.(*transit.RouteResult).Clone()
	span.SetAttributes(attribute.Bool("route.shared", res.Shared))
	o.logger.Info("Route computed and cached",
		zap.String("source", source),
		zap.String("destination", destination),
		zap.Bool("shared", res.Shared),
	)
	o.answered(span, OutcomeComputed, source, destination, route, start)
	return route, nil
}

// ClearCache drops every cached route.
func (o *Orchestrator) ClearCache(ctx context.Context) bool {
	return o.cache.InvalidateAll(ctx)
}

// Stats returns counters over every answered request.
func (o *Orchestrator) Stats() Stats {
	total := o.totalQueries.Load()
	hits := o.cacheHits.Load()
	stats := Stats{TotalQueries: total, CacheHits: hits}
	if total > 0 {
		stats.CacheHitRate = round2(float64(hits) / float64(total) * 100)
		avgNs := float64(o.totalResponseNs.Load()) / float64(total)
		stats.AvgResponseTimeMs = round2(avgNs / float64(time.Millisecond))
	}
	return stats
}

func (o *Orchestrator) answered(span trace.Span, outcome, source, destination string, route *transit.RouteResult, start time.Time) {
	at := o.now()
	elapsed := at.Sub(start)

	o.totalQueries.Add(1)
	if route.Cached {
		o.cacheHits.Add(1)
	}
	o.totalResponseNs.Add(int64(elapsed))

	span.SetAttributes(attribute.String("route.outcome", outcome))
	span.SetStatus(codes.Ok, "")
	o.count(outcome)

	if o.history != nil {
		o.history.Dispatch(history.NewRecord(source, destination, route, elapsed, at))
	}
}

func (o *Orchestrator) fail(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("route.outcome", outcome))
	if outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.count(outcome)
}

func (o *Orchestrator) count(outcome string) {
	if o.metrics != nil {
		o.metrics.IncrementCounter(MetricRouteRequests, map[string]string{"outcome": outcome})
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
