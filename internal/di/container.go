package di

import (
	"context"
	"fmt"
	"net/http"

	"commuteos-backend/internal/config"
	"commuteos-backend/internal/handlers"
	"commuteos-backend/internal/infrastructure/cache"
	"commuteos-backend/internal/infrastructure/history"
	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/internal/network"
	"commuteos-backend/internal/service/orchestrator"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds one assembled process with lifecycle management.
// Fields a role does not use stay nil.
type Container struct {
	Role      Role
	Config    *config.Config
	Logger    *zap.Logger
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	AWS       *AWSClients

	// Network
	Graphs  *network.Store
	Watcher *network.Watcher

	// Gateway
	RouteCache    *cache.RouteCache
	History       *history.Sink
	Provider      orchestrator.ComputeProvider
	Orchestrator  *orchestrator.Orchestrator
	GatewayRouter *chi.Mux

	// Routing service
	Computer handlers.RouteComputer

	// Handler is the HTTP surface of the role.
	Handler http.Handler

	cleanups []func()
}

// NewGatewayContainer assembles the API gateway. logger may be nil, in
// which case one is built from cfg.
func NewGatewayContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c, err := newContainer(cfg, RoleGateway, logger)
	if err != nil {
		return nil, err
	}
	if err := c.initializeGateway(ctx); err != nil {
		c.runCleanups()
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}
	c.Logger.Info("Gateway container initialized",
		zap.String("routing_mode", cfg.Routing.Mode),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("history_backend", cfg.History.Backend),
	)
	return c, nil
}

// NewRoutingContainer assembles the routing service.
func NewRoutingContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c, err := newContainer(cfg, RoleRouting, logger)
	if err != nil {
		return nil, err
	}
	if err := c.initializeRouting(ctx); err != nil {
		c.runCleanups()
		return nil, fmt.Errorf("failed to initialize routing service: %w", err)
	}
	g := c.Graphs.Current()
	c.Logger.Info("Routing container initialized",
		zap.String("source", g.Source()),
		zap.Int("stations", g.StationCount()),
		zap.Int("edges", g.EdgeCount()),
	)
	return c, nil
}

func newContainer(cfg *config.Config, role Role, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		var err error
		if logger, err = provideLogger(cfg, role); err != nil {
			return nil, err
		}
	}
	return &Container{
		Role:      role,
		Config:    cfg,
		Logger:    logger,
		Collector: provideCollector(cfg),
		AWS:       provideAWSClients(cfg),
	}, nil
}

func (c *Container) initializeObservability() error {
	tp, cleanup, err := provideTracing(c.Config, c.Role, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.Tracing = tp
	c.addCleanup(cleanup)
	return nil
}

// initializeNetwork opens the graph store and, when configured, its
// watcher. A nil store is left in place in gateway remote mode.
func (c *Container) initializeNetwork(ctx context.Context) error {
	if c.Role == RoleGateway && c.Config.Routing.Mode != config.RoutingLocal {
		return nil
	}

	loader, cleanup, err := provideGraphLoader(ctx, c.Config, c.Logger)
	if err != nil {
		return err
	}
	c.addCleanup(cleanup)

	if c.Graphs, err = provideGraphStore(ctx, loader, c.Collector, c.Logger); err != nil {
		return err
	}

	watcher, stop, err := provideWatcher(c.Config, c.Graphs, loader, c.Collector, c.Logger)
	if err != nil {
		return err
	}
	c.Watcher = watcher
	c.addCleanup(stop)
	return nil
}

func (c *Container) initializeGateway(ctx context.Context) error {
	if err := c.initializeObservability(); err != nil {
		return err
	}
	if err := c.initializeNetwork(ctx); err != nil {
		return err
	}

	backend, cleanup, err := provideCacheBackend(ctx, c.Config, c.AWS, c.Logger)
	if err != nil {
		return err
	}
	c.addCleanup(cleanup)
	c.RouteCache = provideRouteCache(c.Config, backend, c.Collector, c.Logger)

	store, err := provideHistoryStore(ctx, c.Config, c.AWS, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	sink, drain := provideHistorySink(c.Config, store, c.Collector, c.Logger)
	c.History = sink
	c.addCleanup(drain)

	engine := provideEngine(c.Logger)
	c.Provider = provideComputeProvider(c.Config, engine, c.Graphs, c.Collector, c.Logger)
	c.Orchestrator = provideOrchestrator(c.Config, c.RouteCache, c.Provider, c.History, c.Graphs, c.Collector, c.Logger)

	h := provideGatewayHandler(c.Config, c.Orchestrator, c.Logger)
	c.GatewayRouter = provideGatewayRouter(c.Config, h, c.Collector, c.Logger)
	c.Handler = c.GatewayRouter
	return nil
}

func (c *Container) initializeRouting(ctx context.Context) error {
	if err := c.initializeObservability(); err != nil {
		return err
	}
	if err := c.initializeNetwork(ctx); err != nil {
		return err
	}

	engine := provideEngine(c.Logger)
	c.Computer = provideRoutingComputer(engine, c.Graphs, c.Collector)

	h := provideRoutingHandler(c.Config, c.Computer, c.Graphs, c.Logger)
	c.Handler = provideRoutingRouter(c.Config, h, c.Collector, c.Logger)
	return nil
}

func (c *Container) addCleanup(fn func()) {
	if fn != nil {
		c.cleanups = append(c.cleanups, fn)
	}
}

func (c *Container) runCleanups() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

// Shutdown releases resources in reverse order of creation. If ctx ends
// first it returns ctx.Err() and cleanup continues in the background.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Info("Shutting down container", zap.String("role", string(c.Role)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.runCleanups()
	}()

	select {
	case <-done:
		_ = c.Logger.Sync()
		return nil
	case <-ctx.Done():
		c.Logger.Warn("Container shutdown timed out", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
