package commands

import (
	"fmt"

	"commuteos-backend/internal/di"
	"commuteos-backend/internal/network"
	neo4jrepo "commuteos-backend/internal/repository/neo4j"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *CLI) newIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Seed Neo4j with the network from a graph file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Graph.File
			}

			logger, err := di.NewLogger(cfg, di.RoleIngest)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting data ingestion", zap.String("file", file))

			g, err := network.NewFileLoader(file, logger).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load graph file: %w", err)
			}

			repo, err := neo4jrepo.NewGraphRepository(neo4jrepo.Config{
				URI:      cfg.Neo4j.URI,
				Username: cfg.Neo4j.Username,
				Password: cfg.Neo4j.Password,
				Database: cfg.Neo4j.Database,
			}, logger)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(cmd.Context()) }()

			if err := repo.VerifyConnectivity(cmd.Context()); err != nil {
				return err
			}

			seeded, err := repo.Seed(cmd.Context(), g)
			if err != nil {
				return err
			}

			logger.Info("Data ingestion completed",
				zap.Bool("seeded", seeded),
				zap.Int("stations", g.StationCount()),
				zap.Int("edges", g.EdgeCount()),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded=%t stations=%d edges=%d\n", seeded, g.StationCount(), g.EdgeCount())
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph file to ingest (defaults to graph.file)")
	return cmd
}
