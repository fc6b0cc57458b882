//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"commuteos-backend/internal/config"

	"github.com/google/wire"
)

// InitializeGateway is the wire injector for the API gateway.
func InitializeGateway(ctx context.Context, cfg *config.Config) (*GatewayApp, func(), error) {
	wire.Build(GatewayProviders)
	return nil, nil, nil
}

// InitializeRouting is the wire injector for the routing service.
func InitializeRouting(ctx context.Context, cfg *config.Config) (*RoutingApp, func(), error) {
	wire.Build(RoutingProviders)
	return nil, nil, nil
}
