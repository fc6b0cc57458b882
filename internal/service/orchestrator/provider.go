package orchestrator

import (
	"context"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/service/routing"
)

// ComputeProvider computes a route for a station pair. Implementations
// report unknown stations and disconnected pairs as not-found errors and
// everything else as unavailable.
//
//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks
type ComputeProvider interface {
	Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error)
}

// GraphSource returns the graph to route over. *network.Store satisfies it.
type GraphSource interface {
	Current() *transit.Graph
}

// LocalProvider computes routes in process.
type LocalProvider struct {
	engine *routing.Engine
	graphs GraphSource
}

// NewLocalProvider creates a provider over the current graph of graphs.
func NewLocalProvider(engine *routing.Engine, graphs GraphSource) *LocalProvider {
	return &LocalProvider{engine: engine, graphs: graphs}
}

// Compute runs the path engine over the graph current at call time.
func (p *LocalProvider) Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error) {
	return p.engine.ComputeRoute(ctx, p.graphs.Current(), source, destination)
}
