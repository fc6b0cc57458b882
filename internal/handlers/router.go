package handlers

import (
	"net/http"
	"time"

	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/internal/infrastructure/resilience"
	"commuteos-backend/internal/middleware"
	"commuteos-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	chicors "github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// RouterConfig configures both HTTP surfaces.
type RouterConfig struct {
	ServiceName    string
	APIPrefix      string
	HandlerTimeout time.Duration
	Breaker        resilience.BreakerConfig
	AllowedOrigins []string
}

func (c RouterConfig) withDefaults(serviceName string) RouterConfig {
	if c.ServiceName == "" {
		c.ServiceName = serviceName
	}
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/v1"
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 35 * time.Second
	}
	if c.Breaker.Name == "" {
		c.Breaker = resilience.DefaultBreakerConfig(serviceName)
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	return c
}

// NewGatewayRouter mounts the gateway API on a chi router. collector may be
// nil, in which case /metrics is not served.
func NewGatewayRouter(h *GatewayHandler, collector *observability.Collector, cfg RouterConfig, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults("commuteos-gateway")

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(observability.TracingMiddleware(cfg.ServiceName))
	if collector != nil {
		r.Use(observability.MetricsMiddleware(collector))
	}
	r.Use(chicors.Handler(chicors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "traceparent"},
		ExposedHeaders: []string{"X-Request-ID", "X-Trace-ID"},
		MaxAge:         300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/openapi", api.OpenAPIHandler())
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.HandlerTimeout, logger))
		r.Use(middleware.CircuitBreaker(cfg.Breaker, logger))

		r.Post("/route", h.GetRoute)
		r.Delete("/cache", h.ClearCache)
		r.Get("/stats", h.Stats)
	})

	return r
}

// NewRoutingRouter mounts the routing service on a gorilla/mux router
// wrapped in rs/cors. collector may be nil.
func NewRoutingRouter(h *RoutingHandler, collector *observability.Collector, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults("commuteos-routing")

	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(observability.TracingMiddleware(cfg.ServiceName))
	if collector != nil {
		r.Use(observability.MetricsMiddleware(collector))
		r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}
	r.Use(middleware.Timeout(cfg.HandlerTimeout, logger))

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/compute", h.Compute).Methods(http.MethodPost)
	r.HandleFunc("/station/{id}", h.Station).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "traceparent"},
	})
	return c.Handler(r)
}
