package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"commuteos-backend/internal/config"
	"commuteos-backend/internal/di"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *CLI) newGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the API gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			container, err := di.NewGatewayContainer(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cfg.Addr(), container)
		},
	}
}

func (c *CLI) newRoutingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routing",
		Short: "Run the routing service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			container, err := di.NewRoutingContainer(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cfg.RoutingAddr(), container)
		},
	}
}

// serve runs the container's handler until ctx is cancelled, then drains
// in-flight requests and releases the container.
func serve(ctx context.Context, cfg *config.Config, addr string, container *di.Container) error {
	logger := container.Logger
	defer zap.ReplaceGlobals(logger)()

	srv := &http.Server{
		Addr:         addr,
		Handler:      container.Handler,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("environment", string(cfg.Environment)),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case serveErr = <-errCh:
		logger.Error("Server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error("Container shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
	return serveErr
}
