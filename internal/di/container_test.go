package di

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"commuteos-backend/internal/config"
	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/infrastructure/observability"
	"commuteos-backend/pkg/api"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	observability.ResetForTesting()
	t.Cleanup(observability.ResetForTesting)

	cfg := config.Default()
	cfg.Environment = config.Development
	cfg.Logging.Level = "error"
	cfg.Routing.Mode = config.RoutingLocal
	cfg.Graph.File = filepath.Join(t.TempDir(), "missing.json")
	cfg.Observability.MetricsNamespace = "di_test"
	return cfg
}

func shutdown(t *testing.T, c *Container) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, c.Shutdown(ctx))
	})
}

func postRoute(t *testing.T, h http.Handler, source, destination string) (*httptest.ResponseRecorder, api.RouteResponse) {
	t.Helper()
	body := `{"source":"` + source + `","destination":"` + destination + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp api.RouteResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestGatewayContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve routes in local mode over the fallback network", func(t *testing.T) {
		cfg := testConfig(t)
		c, err := NewGatewayContainer(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		shutdown(t, c)

		require.NotNil(t, c.Graphs)
		assert.True(t, c.Graphs.Current().IsFallback())
		assert.Nil(t, c.Watcher)
		assert.Nil(t, c.Tracing)

		rec, first := postRoute(t, c.Handler, "Station_A", "Station_B")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"Station_A", "Station_C", "Station_B"}, first.Path)
		assert.Equal(t, 27.0, first.EstimatedTime)
		assert.False(t, first.Cached)

		_, second := postRoute(t, c.Handler, "Station_A", "Station_B")
		assert.True(t, second.Cached)

		stats := c.Orchestrator.Stats()
		assert.Equal(t, int64(2), stats.TotalQueries)
		assert.Equal(t, int64(1), stats.CacheHits)

		assert.Equal(t, 5.0, testutil.ToFloat64(c.Collector.GraphStations))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.Collector.CacheHits))
	})

	t.Run("Should answer 404 for an unknown station", func(t *testing.T) {
		c, err := NewGatewayContainer(ctx, testConfig(t), zap.NewNop())
		require.NoError(t, err)
		shutdown(t, c)

		rec, _ := postRoute(t, c.Handler, "Station_A", "Station_Z")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should fall back to memory when the cache backend is unreachable", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache.Backend = config.CacheRedis
		cfg.Redis.Host = "127.0.0.1"
		cfg.Redis.Port = 1

		c, err := NewGatewayContainer(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		shutdown(t, c)

		postRoute(t, c.Handler, "Station_A", "Station_B")
		_, second := postRoute(t, c.Handler, "Station_A", "Station_B")
		assert.True(t, second.Cached)
	})

	t.Run("Should not serve metrics when disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.EnableMetrics = false
		c, err := NewGatewayContainer(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		shutdown(t, c)

		rec := httptest.NewRecorder()
		c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should reject an invalid log level when building its own logger", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.Level = "verbose"

		_, err := NewGatewayContainer(ctx, cfg, nil)
		assert.ErrorContains(t, err, "invalid log level")
	})
}

func TestGatewayRemoteMode(t *testing.T) {
	ctx := context.Background()

	routingCfg := testConfig(t)
	routingSvc, err := NewRoutingContainer(ctx, routingCfg, zap.NewNop())
	require.NoError(t, err)
	shutdown(t, routingSvc)

	server := httptest.NewServer(routingSvc.Handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, portText, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	gatewayCfg := testConfig(t)
	gatewayCfg.Routing.Mode = config.RoutingRemote
	gatewayCfg.Routing.Host = host
	gatewayCfg.Routing.Port = port

	gw, err := NewGatewayContainer(ctx, gatewayCfg, zap.NewNop())
	require.NoError(t, err)
	shutdown(t, gw)

	t.Run("Should not load a network of its own", func(t *testing.T) {
		assert.Nil(t, gw.Graphs)
	})

	t.Run("Should compute through the routing service", func(t *testing.T) {
		rec, resp := postRoute(t, gw.Handler, "Station_A", "Station_B")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"Station_A", "Station_C", "Station_B"}, resp.Path)
		require.NotNil(t, resp.Distance)
		assert.InDelta(t, 5.6, *resp.Distance, 1e-9)
	})

	t.Run("Should pass not found through as 404", func(t *testing.T) {
		rec, _ := postRoute(t, gw.Handler, "Station_B", "Station_A")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRoutingContainer(t *testing.T) {
	c, err := NewRoutingContainer(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	shutdown(t, c)

	assert.Nil(t, c.Orchestrator)
	assert.Equal(t, transit.SourceDefaultFallback, c.Graphs.Current().Source())

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/station/Station_A", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Central Station")
}

const watchedNetwork = `{
  "stations": {
    "X": {"name": "X", "latitude": 0, "longitude": 0, "type": "metro"},
    "Y": {"name": "Y", "latitude": 0, "longitude": 0, "type": "metro"},
    "Z": {"name": "Z", "latitude": 0, "longitude": 0, "type": "bus"}
  },
  "edges": [
    {"source": "X", "target": "Y", "distance": 1, "travel_time": 10},
    {"source": "X", "target": "Z", "distance": 1, "travel_time": 3},
    {"source": "Z", "target": "Y", "distance": 1, "travel_time": 3}
  ]
}`

const reducedNetwork = `{
  "stations": {
    "X": {"name": "X", "latitude": 0, "longitude": 0, "type": "metro"},
    "Y": {"name": "Y", "latitude": 0, "longitude": 0, "type": "metro"}
  },
  "edges": [
    {"source": "X", "target": "Y", "distance": 1, "travel_time": 10}
  ]
}`

func TestGatewayHotReload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Graph.File = filepath.Join(t.TempDir(), "graph.json")
	cfg.Graph.Watch = true
	require.NoError(t, os.WriteFile(cfg.Graph.File, []byte(watchedNetwork), 0o644))

	c, err := NewGatewayContainer(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	shutdown(t, c)
	require.NotNil(t, c.Watcher)

	_, before := postRoute(t, c.Handler, "X", "Y")
	assert.Equal(t, []string{"X", "Z", "Y"}, before.Path)
	_, cached := postRoute(t, c.Handler, "X", "Y")
	require.True(t, cached.Cached)

	require.NoError(t, os.WriteFile(cfg.Graph.File, []byte(reducedNetwork), 0o644))

	t.Run("Should clear cached routes when the network changes", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			_, after := postRoute(t, c.Handler, "X", "Y")
			return len(after.Path) == 2 && after.EstimatedTime == 10
		}, 5*time.Second, 50*time.Millisecond)

		assert.Equal(t, 2.0, testutil.ToFloat64(c.Collector.GraphStations))
		assert.GreaterOrEqual(t, testutil.ToFloat64(c.Collector.GraphReloads.WithLabelValues("success")), 1.0)
	})
}
