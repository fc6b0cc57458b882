// Package di wires CommuteOS components from configuration.
//
// Providers are shared by the google/wire sets in wire_sets.go and by the
// hand-wired Container used by the binaries. Providers that own resources
// return a cleanup function.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"commuteos-backend/internal/config"
	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/handlers"
	"commuteos-backend/internal/infrastructure/cache"
	"commuteos-backend/internal/infrastructure/history"
	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/internal/infrastructure/resilience"
	"commuteos-backend/internal/network"
	neo4jrepo "commuteos-backend/internal/repository/neo4j"
	"commuteos-backend/internal/service/orchestrator"
	"commuteos-backend/internal/service/routing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Role names the process being assembled.
type Role string

const (
	RoleGateway Role = "gateway"
	RoleRouting Role = "routing"
	RoleIngest  Role = "ingest"
)

func gatewayRole() Role { return RoleGateway }
func routingRole() Role { return RoleRouting }

// ServiceName is the tracing and logging name of a role.
func (r Role) ServiceName() string {
	return "commuteos-" + string(r)
}

// ============================================================================
// CONFIGURATION PROVIDERS
// ============================================================================

// provideLogger builds the zap logger. Production uses the production
// preset, everything else the development preset; level and encoding
// come from the logging section.
func provideLogger(cfg *config.Config, role Role) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zc.Level = level
	if cfg.Logging.Format != "" {
		zc.Encoding = cfg.Logging.Format
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger.With(
		zap.String("service", role.ServiceName()),
		zap.String("environment", string(cfg.Environment)),
	), nil
}

// NewLogger builds the logger a role would get from its container.
func NewLogger(cfg *config.Config, role Role) (*zap.Logger, error) {
	return provideLogger(cfg, role)
}

// ============================================================================
// OBSERVABILITY PROVIDERS
// ============================================================================

func provideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Observability.MetricsNamespace)
}

// provideTracing installs the OTLP exporter. It returns nil when tracing is
// disabled; spans then go to the global no-op provider.
func provideTracing(cfg *config.Config, role Role, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.Observability.EnableTracing {
		return nil, func() {}, nil
	}

	tp, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    role.ServiceName(),
		ServiceVersion: cfg.App.Version,
		Environment:    string(cfg.Environment),
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
		EnableDebug:    cfg.IsDevelopment(),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ============================================================================
// CACHE PROVIDERS
// ============================================================================

// provideCacheBackend opens the configured backend. A backend that cannot
// be reached at startup is replaced by the in-memory cache, since the cache
// may slow requests down but must never stop the gateway.
func provideCacheBackend(ctx context.Context, cfg *config.Config, clients *AWSClients, logger *zap.Logger) (cache.Backend, func(), error) {
	backend, cleanup, err := openCacheBackend(ctx, cfg, clients, logger)
	if err == nil {
		return backend, cleanup, nil
	}

	logger.Warn("Cache backend unavailable, falling back to memory",
		zap.String("backend", cfg.Cache.Backend),
		zap.Error(err),
	)
	return memoryBackend(cfg, logger)
}

func openCacheBackend(ctx context.Context, cfg *config.Config, clients *AWSClients, logger *zap.Logger) (cache.Backend, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheBadger:
		c, err := cache.NewBadgerCache(cache.BadgerConfig{Dir: cfg.Cache.BadgerPath}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, closer(c.Close, "badger cache", logger), nil

	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, closer(c.Close, "redis cache", logger), nil

	case config.CacheDynamoDB:
		client, err := clients.DynamoDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewDynamoCache(client, cfg.Cache.DynamoTable, logger), func() {}, nil

	default:
		return memoryBackend(cfg, logger)
	}
}

func memoryBackend(cfg *config.Config, logger *zap.Logger) (cache.Backend, func(), error) {
	c := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.MaxMemoryMB*1024*1024, logger)
	c.StartCleanup(time.Minute)
	return c, closer(c.Close, "memory cache", logger), nil
}

func provideRouteCache(cfg *config.Config, backend cache.Backend, collector *observability.Collector, logger *zap.Logger) *cache.RouteCache {
	opts := []cache.RouteCacheOption{cache.WithMetrics(collector)}
	if cfg.Cache.Breaker {
		opts = append(opts, cache.WithBreaker(resilience.DefaultBreakerConfig("route-cache")))
	}
	return cache.NewRouteCache(backend, cfg.Cache.TTL, logger, opts...)
}

// ============================================================================
// HISTORY PROVIDERS
// ============================================================================

func provideHistoryStore(ctx context.Context, cfg *config.Config, clients *AWSClients, logger *zap.Logger) (history.Store, error) {
	switch cfg.History.Backend {
	case config.HistoryNone:
		return history.NopStore{}, nil

	case config.HistoryDynamoDB:
		client, err := clients.DynamoDB(ctx)
		if err != nil {
			return nil, err
		}
		return history.NewDynamoStore(client, cfg.History.DynamoTable, logger), nil

	case config.HistorySupabase:
		client, err := history.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			return nil, err
		}
		return history.NewSupabaseStore(client, cfg.History.SupabaseTable, logger), nil

	case config.HistoryEventBridge:
		client, err := clients.EventBridge(ctx)
		if err != nil {
			return nil, err
		}
		return history.NewEventBridgeStore(client, cfg.History.EventBusName, logger), nil

	default:
		return history.NewMemoryStore(cfg.History.MemoryLimit), nil
	}
}

// provideHistorySink starts the background writer. Its cleanup drains the
// queue within the shutdown timeout.
func provideHistorySink(cfg *config.Config, store history.Store, collector *observability.Collector, logger *zap.Logger) (*history.Sink, func()) {
	sinkConfig := history.DefaultSinkConfig()
	sinkConfig.QueueSize = cfg.History.QueueSize
	sinkConfig.Workers = cfg.History.Workers

	sink := history.NewSink(store, sinkConfig, collector, logger)
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()
		if err := sink.Close(ctx); err != nil {
			logger.Warn("History sink did not drain", zap.Error(err))
		}
	}
	return sink, cleanup
}

// ============================================================================
// NETWORK PROVIDERS
// ============================================================================

// provideGraphLoader selects where the transit network is read from.
func provideGraphLoader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (network.Loader, func(), error) {
	if cfg.Graph.Source != config.GraphNeo4j {
		return network.NewFileLoader(cfg.Graph.File, logger), func() {}, nil
	}

	repo, err := neo4jrepo.NewGraphRepository(neo4jrepo.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.VerifyConnectivity(ctx); err != nil {
		_ = repo.Close(context.Background())
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(ctx); err != nil {
			logger.Warn("Neo4j driver close failed", zap.Error(err))
		}
	}
	return repo, cleanup, nil
}

// provideGraphStore loads the initial network and keeps the network gauges
// in step with it.
func provideGraphStore(ctx context.Context, loader network.Loader, collector *observability.Collector, logger *zap.Logger) (*network.Store, error) {
	store, err := network.Open(ctx, loader, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load transit network: %w", err)
	}

	setNetworkGauges(collector, store.Current())
	store.OnSwap(func(_, current *transit.Graph) {
		setNetworkGauges(collector, current)
	})
	return store, nil
}

// provideGatewayGraphStore returns nil in remote mode, where the network
// lives in the routing service.
func provideGatewayGraphStore(ctx context.Context, cfg *config.Config, loader network.Loader, collector *observability.Collector, logger *zap.Logger) (*network.Store, error) {
	if cfg.Routing.Mode != config.RoutingLocal {
		return nil, nil
	}
	return provideGraphStore(ctx, loader, collector, logger)
}

// provideWatcher hot-reloads a file-backed network when graph.watch is
// set. It returns nil otherwise.
func provideWatcher(cfg *config.Config, store *network.Store, loader network.Loader, collector *observability.Collector, logger *zap.Logger) (*network.Watcher, func(), error) {
	if store == nil || !cfg.Graph.Watch || cfg.Graph.Source != config.GraphFile {
		return nil, func() {}, nil
	}

	if fl, ok := loader.(*network.FileLoader); ok {
		loader = fl.WithoutFallback()
	}
	watcher, err := network.NewWatcher(cfg.Graph.File, store, countReloads(loader, collector), logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.Start()
	return watcher, watcher.Stop, nil
}

// countReloads reports every reload attempt by status.
func countReloads(loader network.Loader, collector *observability.Collector) network.Loader {
	return network.LoaderFunc(func(ctx context.Context) (*transit.Graph, error) {
		g, err := loader.Load(ctx)
		status := "success"
		if err != nil {
			status = "failure"
		}
		collector.IncrementCounter("graph_reloads", map[string]string{"status": status})
		return g, err
	})
}

func setNetworkGauges(collector *observability.Collector, g *transit.Graph) {
	collector.SetGauge("graph_stations", float64(g.StationCount()), nil)
	collector.SetGauge("graph_edges", float64(g.EdgeCount()), nil)
}

// ============================================================================
// ROUTING PROVIDERS
// ============================================================================

func provideEngine(logger *zap.Logger) *routing.Engine {
	return routing.NewEngine(logger)
}

// provideComputeProvider picks in-process computation or the routing
// service. graphs is only used in local mode.
func provideComputeProvider(cfg *config.Config, engine *routing.Engine, graphs *network.Store, collector *observability.Collector, logger *zap.Logger) orchestrator.ComputeProvider {
	var inner orchestrator.ComputeProvider
	if cfg.Routing.Mode == config.RoutingLocal && graphs != nil {
		inner = orchestrator.NewLocalProvider(engine, graphs)
	} else {
		inner = orchestrator.NewRemoteProvider(orchestrator.RemoteConfig{
			BaseURL: cfg.RoutingServiceURL(),
			Timeout: cfg.API.RequestTimeout,
			Breaker: resilience.DefaultBreakerConfig("routing-service"),
		}, &http.Client{}, logger)
	}
	return observability.TraceComputer(inner, nil, collector)
}

// provideOrchestrator assembles the request path. When the gateway holds
// the network itself, a topology change clears the route cache.
func provideOrchestrator(
	cfg *config.Config,
	routeCache *cache.RouteCache,
	provider orchestrator.ComputeProvider,
	sink *history.Sink,
	graphs *network.Store,
	collector *observability.Collector,
	logger *zap.Logger,
) *orchestrator.Orchestrator {
	orch := orchestrator.New(routeCache, provider, sink, collector, orchestrator.Config{
		CacheTTL:       cfg.Cache.TTL,
		ComputeTimeout: cfg.API.RequestTimeout,
	}, logger)

	if graphs != nil {
		graphs.OnSwap(func(_, current *transit.Graph) {
			cleared := orch.ClearCache(context.Background())
			logger.Info("Route cache invalidated after network change",
				zap.Bool("cleared", cleared),
				zap.String("source", current.Source()),
			)
		})
	}
	return orch
}

// provideRoutingComputer is the routing service's in-process computer.
func provideRoutingComputer(engine *routing.Engine, graphs *network.Store, collector *observability.Collector) handlers.RouteComputer {
	return observability.TraceComputer(orchestrator.NewLocalProvider(engine, graphs), nil, collector)
}

// ============================================================================
// HTTP PROVIDERS
// ============================================================================

func routerConfig(cfg *config.Config, role Role) handlers.RouterConfig {
	return handlers.RouterConfig{
		ServiceName:    role.ServiceName(),
		APIPrefix:      cfg.API.Prefix,
		HandlerTimeout: cfg.API.RequestTimeout + 5*time.Second,
		Breaker:        resilience.DefaultBreakerConfig(string(role) + "-api"),
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
}

// metricsEndpoint returns collector when /metrics should be served.
func metricsEndpoint(cfg *config.Config, collector *observability.Collector) *observability.Collector {
	if !cfg.Observability.EnableMetrics {
		return nil
	}
	return collector
}

func provideGatewayHandler(cfg *config.Config, orch *orchestrator.Orchestrator, logger *zap.Logger) *handlers.GatewayHandler {
	return handlers.NewGatewayHandler(orch, handlers.ServiceInfo{
		Version:   cfg.App.Version,
		APIPrefix: cfg.API.Prefix,
	}, logger)
}

func provideGatewayRouter(cfg *config.Config, h *handlers.GatewayHandler, collector *observability.Collector, logger *zap.Logger) *chi.Mux {
	return handlers.NewGatewayRouter(h, metricsEndpoint(cfg, collector), routerConfig(cfg, RoleGateway), logger)
}

func provideRoutingHandler(cfg *config.Config, computer handlers.RouteComputer, graphs *network.Store, logger *zap.Logger) *handlers.RoutingHandler {
	return handlers.NewRoutingHandler(computer, graphs, handlers.ServiceInfo{
		Version:   cfg.App.Version,
		APIPrefix: cfg.API.Prefix,
	}, logger)
}

func provideRoutingRouter(cfg *config.Config, h *handlers.RoutingHandler, collector *observability.Collector, logger *zap.Logger) http.Handler {
	return handlers.NewRoutingRouter(h, metricsEndpoint(cfg, collector), routerConfig(cfg, RoleRouting), logger)
}

func closer(fn func() error, name string, logger *zap.Logger) func() {
	return func() {
		if err := fn(); err != nil {
			logger.Warn("Close failed", zap.String("component", name), zap.Error(err))
		}
	}
}
