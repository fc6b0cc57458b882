package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/infrastructure/cache"
	"commuteos-backend/internal/infrastructure/history"
	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/internal/service/orchestrator"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newCollector(t *testing.T) *observability.Collector {
	t.Helper()
	observability.ResetForTesting()
	t.Cleanup(observability.ResetForTesting)
	return observability.NewCollector("commuteos_test")
}

func TestCollector(t *testing.T) {
	t.Run("Should return the same instance until reset", func(t *testing.T) {
		c := newCollector(t)
		assert.Same(t, c, observability.NewCollector("other"))
	})

	t.Run("Should map recorder names onto series", func(t *testing.T) {
		c := newCollector(t)

		c.IncrementCounter(cache.MetricCacheHits, map[string]string{"operation": "get"})
		c.IncrementCounter(cache.MetricCacheMisses, map[string]string{"operation": "get"})
		c.IncrementCounter(cache.MetricCacheMisses, map[string]string{"operation": "get"})
		c.IncrementCounter(cache.MetricCacheErrors, map[string]string{"operation": "set"})
		c.IncrementCounter(orchestrator.MetricRouteRequests, map[string]string{"outcome": orchestrator.OutcomeHit})
		c.IncrementCounter(history.MetricHistoryDropped, map[string]string{"reason": "queue_full"})
		c.IncrementCounter(history.MetricHistoryFailed, nil)
		c.IncrementCounter("graph_reloads", map[string]string{"status": "success"})
		c.IncrementCounter("something_else", nil)

		assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
		assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheErrors.WithLabelValues("set")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.RouteRequests.WithLabelValues("hit")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.HistoryDropped.WithLabelValues("queue_full")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.HistoryFailed))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphReloads.WithLabelValues("success")))
	})

	t.Run("Should label missing tags as unknown", func(t *testing.T) {
		c := newCollector(t)
		c.IncrementCounter(orchestrator.MetricRouteRequests, nil)
		assert.Equal(t, 1.0, testutil.ToFloat64(c.RouteRequests.WithLabelValues("unknown")))
	})

	t.Run("Should set network gauges", func(t *testing.T) {
		c := newCollector(t)
		c.SetGauge("graph_stations", 5, nil)
		c.SetGauge("graph_edges", 14, nil)
		assert.Equal(t, 5.0, testutil.ToFloat64(c.GraphStations))
		assert.Equal(t, 14.0, testutil.ToFloat64(c.GraphEdges))
	})

	t.Run("Should expose series on the handler", func(t *testing.T) {
		c := newCollector(t)
		c.IncrementCounter(cache.MetricCacheHits, nil)

		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "commuteos_test_cache_hits_total 1")
	})
}

func TestMetricsMiddleware(t *testing.T) {
	t.Run("Should label chi requests with the route pattern", func(t *testing.T) {
		c := newCollector(t)
		r := chi.NewRouter()
		r.Use(observability.MetricsMiddleware(c))
		r.Get("/station/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/station/Z", nil))

		assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/station/{id}", "404")))
	})

	t.Run("Should label gorilla mux requests with the path template", func(t *testing.T) {
		c := newCollector(t)
		r := mux.NewRouter()
		r.Use(observability.MetricsMiddleware(c))
		r.HandleFunc("/station/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}).Methods(http.MethodGet)

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/station/A", nil))

		assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/station/{id}", "200")))
	})

	t.Run("Should fall back to unknown without a router", func(t *testing.T) {
		c := newCollector(t)
		h := observability.MetricsMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

		assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "unknown", "200")))
	})
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(observability.NewPropagator())
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestTracingMiddleware(t *testing.T) {
	t.Run("Should name the span after the route and expose the trace id", func(t *testing.T) {
		recorder := withRecorder(t)
		r := chi.NewRouter()
		r.Use(observability.TracingMiddleware("commuteos-test"))
		r.Post("/api/v1/route", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader("{}")))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "POST /api/v1/route", spans[0].Name())
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, spans[0].SpanContext().TraceID().String(), rec.Header().Get("X-Trace-ID"))
	})

	t.Run("Should continue an incoming trace", func(t *testing.T) {
		recorder := withRecorder(t)
		h := observability.TracingMiddleware("commuteos-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		h.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
		assert.Equal(t, codes.Ok, spans[0].Status().Code)
	})
}

type stubComputer struct {
	route *transit.RouteResult
	err   error
}

func (s stubComputer) Compute(context.Context, string, string) (*transit.RouteResult, error) {
	return s.route, s.err
}

func TestTraceComputer(t *testing.T) {
	ctx := context.Background()

	t.Run("Should record a span and a compute duration", func(t *testing.T) {
		recorder := withRecorder(t)
		c := newCollector(t)
		route := &transit.RouteResult{Path: []string{"A", "C", "B"}, EstimatedTime: 27}
		traced := observability.TraceComputer(stubComputer{route: route}, otel.Tracer("test"), c)

		got, err := traced.Compute(ctx, "A", "B")

		require.NoError(t, err)
		assert.Same(t, route, got)
		require.Len(t, recorder.Ended(), 1)
		assert.Equal(t, codes.Ok, recorder.Ended()[0].Status().Code)

		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, rec.Body.String(), "commuteos_test_route_compute_duration_seconds_count 1")
	})

	t.Run("Should not mark not found as a span error", func(t *testing.T) {
		recorder := withRecorder(t)
		traced := observability.TraceComputer(stubComputer{err: appErrors.NewRouteNotFound("B", "A")}, nil, nil)

		_, err := traced.Compute(ctx, "B", "A")

		assert.True(t, appErrors.IsNotFound(err))
		require.Len(t, recorder.Ended(), 1)
		assert.NotEqual(t, codes.Error, recorder.Ended()[0].Status().Code)
	})

	t.Run("Should mark other failures as span errors", func(t *testing.T) {
		recorder := withRecorder(t)
		traced := observability.TraceComputer(stubComputer{err: appErrors.NewUnavailable("down", context.DeadlineExceeded)}, nil, nil)

		start := time.Now()
		_, err := traced.Compute(ctx, "A", "B")

		assert.True(t, appErrors.IsUnavailable(err))
		assert.Less(t, time.Since(start), time.Second)
		require.Len(t, recorder.Ended(), 1)
		assert.Equal(t, codes.Error, recorder.Ended()[0].Status().Code)
	})
}
