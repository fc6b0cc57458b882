package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/pkg/api"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCLI(t *testing.T, args ...string) (*CLI, *bytes.Buffer) {
	t.Helper()
	observability.ResetForTesting()
	t.Cleanup(observability.ResetForTesting)

	env := map[string]string{
		"ENVIRONMENT": "development",
		"LOG_LEVEL":   "error",
		"GRAPH_FILE":  filepath.Join(t.TempDir(), "missing.json"),
	}

	c := New()
	c.SetLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	out := &bytes.Buffer{}
	c.SetOutput(out)
	c.SetArgs(args)
	return c, out
}

func TestRouteCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("Should print the route as JSON", func(t *testing.T) {
		c, out := newTestCLI(t, "route", "Station_A", "Station_B")

		require.NoError(t, c.Execute(ctx))

		var resp api.RouteResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, []string{"Station_A", "Station_C", "Station_B"}, resp.Path)
		assert.Equal(t, 27.0, resp.EstimatedTime)
		assert.Equal(t, 0.651, resp.BaseScore)
	})

	t.Run("Should fail for a disconnected pair", func(t *testing.T) {
		c, _ := newTestCLI(t, "route", "Station_B", "Station_A")

		err := c.Execute(ctx)

		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("Should require both stations", func(t *testing.T) {
		c, _ := newTestCLI(t, "route", "Station_A")
		assert.Error(t, c.Execute(ctx))
	})
}

func TestPersistentFlags(t *testing.T) {
	t.Run("Should reject an unknown log level", func(t *testing.T) {
		c, _ := newTestCLI(t, "--log-level", "verbose", "route", "Station_A", "Station_B")

		err := c.Execute(context.Background())

		assert.ErrorContains(t, err, "invalid --log-level")
	})

	t.Run("Should accept warning as warn", func(t *testing.T) {
		c, _ := newTestCLI(t, "--log-level", "WARNING", "route", "Station_A", "Station_B")
		assert.NoError(t, c.Execute(context.Background()))
	})

	t.Run("Should fail on a missing config file", func(t *testing.T) {
		c, _ := newTestCLI(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "route", "Station_A", "Station_B")
		assert.Error(t, c.Execute(context.Background()))
	})
}
