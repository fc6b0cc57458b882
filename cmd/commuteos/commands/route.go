package commands

import (
	"context"
	"encoding/json"
	"time"

	"commuteos-backend/internal/di"
	"commuteos-backend/pkg/api"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *CLI) newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route SOURCE DESTINATION",
		Short: "Compute one route over the configured network and print it as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg.Graph.Watch = false
			cfg.Observability.EnableTracing = false

			container, err := di.NewRoutingContainer(cmd.Context(), cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = container.Shutdown(ctx)
			}()

			route, err := container.Computer.Compute(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewRouteResponse(route))
		},
	}
}
