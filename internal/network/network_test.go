package network

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeStationJSON = `{
  "stations": {
    "A": {"name": "Alpha", "latitude": 1.5, "longitude": 2.5, "type": "metro"},
    "B": {"name": "Bravo", "latitude": 0, "longitude": 0, "type": "bus"},
    "C": {"name": "Charlie", "latitude": 0, "longitude": 0}
  },
  "edges": [
    {"source": "A", "target": "C", "travel_time": 12, "distance": 2.5, "transport_type": "metro"},
    {"source": "C", "target": "B", "travel_time": 15, "distance": 3.1},
    {"source": "A", "target": "B", "travel_time": 20, "distance": 4.0, "transport_type": "bus"}
  ]
}`

const threeStationYAML = `
stations:
  A: {name: Alpha, latitude: 1.5, longitude: 2.5, type: metro}
  B: {name: Bravo, type: bus}
  C: {name: Charlie}
edges:
  - {source: A, target: C, travel_time: 12, distance: 2.5, transport_type: metro}
  - {source: C, target: B, travel_time: 15, distance: 3.1}
  - {source: A, target: B, travel_time: 20, distance: 4.0, transport_type: bus}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("Should load a JSON document", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "graph.json", threeStationJSON)

		g, err := NewFileLoader(path, nil).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, transit.SourceFile, g.Source())
		assert.Equal(t, 3, g.StationCount())
		assert.Equal(t, 3, g.EdgeCount())
		assert.Equal(t, []string{"C", "B"}, g.Neighbors("A"))
		assert.Equal(t, transit.UnknownTransportType, g.Edges("C")[0].TransportType)

		alpha, err := g.Station("A")
		require.NoError(t, err)
		assert.Equal(t, "Alpha", alpha.Name)
		assert.Equal(t, 1.5, alpha.Latitude)
	})

	t.Run("Should load a YAML document with the same topology", func(t *testing.T) {
		dir := t.TempDir()
		jsonGraph, err := NewFileLoader(writeFile(t, dir, "graph.json", threeStationJSON), nil).Load(ctx)
		require.NoError(t, err)
		yamlGraph, err := NewFileLoader(writeFile(t, dir, "graph.yaml", threeStationYAML), nil).Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, Fingerprint(jsonGraph), Fingerprint(yamlGraph))
	})

	t.Run("Should fall back to the default network when the file is missing", func(t *testing.T) {
		g, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.json"), nil).Load(ctx)
		require.NoError(t, err)
		assert.True(t, g.IsFallback())
		assert.Equal(t, transit.SourceDefaultFallback, g.Source())
		assert.Equal(t, 5, g.StationCount())
	})

	t.Run("Should reject an edge without travel time", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "graph.json", `{
			"stations": {"A": {"name": "A"}, "B": {"name": "B"}},
			"edges": [{"source": "A", "target": "B", "distance": 1.0}]
		}`)

		_, err := NewFileLoader(path, nil).Load(ctx)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Contains(t, err.Error(), "travel_time is required")
	})

	t.Run("Should reject NaN and infinite weights from YAML", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "graph.yaml", `
stations:
  A: {name: A}
  B: {name: B}
edges:
  - {source: A, target: B, travel_time: .nan, distance: .inf}
`)

		g, err := NewFileLoader(path, nil).Load(ctx)
		require.Error(t, err)
		assert.Nil(t, g)
		assert.True(t, appErrors.IsValidation(err))
		assert.Contains(t, err.Error(), "travel time is not a number")
		assert.Contains(t, err.Error(), "distance is infinite")
	})

	t.Run("Should fail on a missing file when the fallback is disabled", func(t *testing.T) {
		g, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.json"), nil).WithoutFallback().Load(ctx)
		require.Error(t, err)
		assert.Nil(t, g)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("Should reject an edge to an undefined station", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "graph.json", `{
			"stations": {"A": {"name": "A"}},
			"edges": [{"source": "A", "target": "Z", "distance": 1.0, "travel_time": 2.0}]
		}`)

		_, err := NewFileLoader(path, nil).Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "undefined target station Z")
	})

	t.Run("Should not fall back on malformed input", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "graph.json", `{"stations": [`)

		g, err := NewFileLoader(path, nil).Load(ctx)
		require.Error(t, err)
		assert.Nil(t, g)
	})
}

func TestDocumentRoundTrip(t *testing.T) {
	g := transit.DefaultNetwork()

	rebuilt, err := FromGraph(g).Build(transit.SourceInline)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(g), Fingerprint(rebuilt))
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should publish a new graph and notify listeners", func(t *testing.T) {
		store := NewStore(transit.DefaultNetwork(), nil)
		var notified atomic.Int32
		store.OnSwap(func(previous, current *transit.Graph) {
			assert.True(t, previous.IsFallback())
			assert.Equal(t, transit.SourceFile, current.Source())
			notified.Add(1)
		})

		path := writeFile(t, t.TempDir(), "graph.json", threeStationJSON)
		require.NoError(t, store.Reload(ctx, NewFileLoader(path, nil)))

		assert.Equal(t, 3, store.Current().StationCount())
		assert.Equal(t, int32(1), notified.Load())
	})

	t.Run("Should skip listeners when the topology is unchanged", func(t *testing.T) {
		store := NewStore(transit.DefaultNetwork(), nil)
		called := false
		store.OnSwap(func(_, _ *transit.Graph) { called = true })

		before := store.Fingerprint()
		store.Swap(transit.DefaultNetwork())

		assert.False(t, called)
		assert.Equal(t, before, store.Fingerprint())
	})

	t.Run("Should keep the current graph when a reload fails", func(t *testing.T) {
		store := NewStore(transit.DefaultNetwork(), nil)
		failing := LoaderFunc(func(context.Context) (*transit.Graph, error) {
			return nil, errors.New("source offline")
		})

		err := store.Reload(ctx, failing)
		require.Error(t, err)
		assert.True(t, store.Current().IsFallback())
	})

	t.Run("Should open from a loader", func(t *testing.T) {
		store, err := Open(ctx, NewFileLoader(filepath.Join(t.TempDir(), "none.json"), nil), nil)
		require.NoError(t, err)
		assert.True(t, store.Current().IsFallback())
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	loader := NewFileLoader(path, nil)

	store, err := Open(context.Background(), loader, nil)
	require.NoError(t, err)
	require.True(t, store.Current().IsFallback())

	watcher, err := NewWatcher(path, store, loader.WithoutFallback(), nil)
	require.NoError(t, err)
	watcher.Start()
	defer watcher.Stop()

	waitReload := func(t *testing.T) {
		t.Helper()
		select {
		case <-watcher.Reloaded():
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not react to the change")
		}
	}

	t.Run("Should reload when the file appears", func(t *testing.T) {
		writeFile(t, dir, "graph.json", threeStationJSON)
		waitReload(t)

		assert.Equal(t, transit.SourceFile, store.Current().Source())
		assert.Equal(t, 3, store.Current().StationCount())
	})

	t.Run("Should keep the current network when the file is moved away", func(t *testing.T) {
		var swapped atomic.Bool
		store.OnSwap(func(_, _ *transit.Graph) { swapped.Store(true) })

		require.NoError(t, os.Rename(path, filepath.Join(dir, "graph.json.bak")))
		waitReload(t)

		assert.Equal(t, transit.SourceFile, store.Current().Source())
		assert.Equal(t, 3, store.Current().StationCount())
		assert.False(t, swapped.Load())
	})
}
