package di

import (
	"net/http"

	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/internal/network"
	"commuteos-backend/internal/service/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/google/wire"
)

// ============================================================================
// PROVIDER SETS
// ============================================================================

// CoreProviders are shared by every role.
var CoreProviders = wire.NewSet(
	provideLogger,
	provideCollector,
	provideTracing,
	provideGraphLoader,
	provideWatcher,
	provideEngine,
)

// GatewayProviders assemble the API gateway.
var GatewayProviders = wire.NewSet(
	CoreProviders,
	gatewayRole,
	provideAWSClients,
	provideGatewayGraphStore,
	provideCacheBackend,
	provideRouteCache,
	provideHistoryStore,
	provideHistorySink,
	provideComputeProvider,
	provideOrchestrator,
	provideGatewayHandler,
	provideGatewayRouter,
	wire.Struct(new(GatewayApp), "*"),
)

// RoutingProviders assemble the routing service.
var RoutingProviders = wire.NewSet(
	CoreProviders,
	routingRole,
	provideGraphStore,
	provideRoutingComputer,
	provideRoutingHandler,
	provideRoutingRouter,
	wire.Struct(new(RoutingApp), "*"),
)

// GatewayApp is what the gateway injector produces.
type GatewayApp struct {
	Router       *chi.Mux
	Orchestrator *orchestrator.Orchestrator
	Tracing      *observability.TracerProvider
	Watcher      *network.Watcher
}

// RoutingApp is what the routing service injector produces.
type RoutingApp struct {
	Handler http.Handler
	Graphs  *network.Store
	Tracing *observability.TracerProvider
	Watcher *network.Watcher
}
