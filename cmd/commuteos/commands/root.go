// Package commands implements the commuteos command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"commuteos-backend/internal/config"

	"github.com/spf13/cobra"
)

// CLI represents the commuteos command line interface.
type CLI struct {
	rootCmd    *cobra.Command
	configFile string
	logLevel   string
	lookup     func(string) (string, bool)
}

// New creates the command tree.
func New() *CLI {
	c := &CLI{lookup: os.LookupEnv}

	rootCmd := &cobra.Command{
		Use:           "commuteos",
		Short:         "CommuteOS transit routing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(c.newGatewayCmd())
	rootCmd.AddCommand(c.newRoutingCmd())
	rootCmd.AddCommand(c.newRouteCmd())
	rootCmd.AddCommand(c.newIngestCmd())

	c.rootCmd = rootCmd
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

// SetLookup replaces the environment lookup. Used for testing.
func (c *CLI) SetLookup(lookup func(string) (string, bool)) {
	c.lookup = lookup
}

// loadConfig applies the persistent flags on top of the layered settings.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(c.configFile, config.WithLookup(c.lookup)).Load()
	if err != nil {
		return nil, err
	}

	if c.logLevel != "" {
		level := strings.ToLower(c.logLevel)
		if level == "warning" {
			level = "warn"
		}
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return cfg, nil
}
