package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	cypher string
	params map[string]any
	write  bool
}

type fakeExecutor struct {
	results map[string]*neo4j.EagerResult
	failOn  string
	calls   []call
	closed  bool
}

func (f *fakeExecutor) Execute(_ context.Context, cypher string, params map[string]any, write bool) (*neo4j.EagerResult, error) {
	f.calls = append(f.calls, call{cypher: cypher, params: params, write: write})
	if f.failOn != "" && strings.Contains(cypher, f.failOn) {
		return nil, errors.New("connection reset")
	}
	if res, ok := f.results[cypher]; ok {
		return res, nil
	}
	return &neo4j.EagerResult{}, nil
}

func (f *fakeExecutor) VerifyConnectivity(context.Context) error { return nil }

func (f *fakeExecutor) Close(context.Context) error {
	f.closed = true
	return nil
}

func records(keys []string, rows ...[]any) *neo4j.EagerResult {
	res := &neo4j.EagerResult{Keys: keys}
	for _, row := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: row})
	}
	return res
}

var (
	stationKeys = []string{"id", "name", "latitude", "longitude", "type"}
	edgeKeys    = []string{"source", "target", "travel_time", "distance", "transport_type"}
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Should build a graph from stations and connections", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]*neo4j.EagerResult{
			stationsQuery: records(stationKeys,
				[]any{"A", "Central", 40.7, -73.9, "metro"},
				[]any{"B", nil, int64(40), int64(-73), nil},
			),
			edgesQuery: records(edgeKeys,
				[]any{"A", "B", int64(12), 2.5, "metro"},
			),
		}}
		repo := NewGraphRepositoryWithExecutor(exec, nil)

		g, err := repo.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, transit.SourceNeo4j, g.Source())
		assert.Equal(t, 2, g.StationCount())
		assert.Equal(t, 1, g.EdgeCount())

		b, err := g.Station("B")
		require.NoError(t, err)
		assert.Equal(t, "B", b.Name)
		assert.Equal(t, "unknown", b.Type)
		assert.Equal(t, 40.0, b.Latitude)

		edges := g.Edges("A")
		require.Len(t, edges, 1)
		assert.Equal(t, 12.0, edges[0].TravelTime)
		assert.Equal(t, 2.5, edges[0].Distance)

		for _, c := range exec.calls {
			assert.False(t, c.write)
		}
	})

	t.Run("Should reject connections to unknown stations", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]*neo4j.EagerResult{
			stationsQuery: records(stationKeys, []any{"A", "Central", 0.0, 0.0, "metro"}),
			edgesQuery:    records(edgeKeys, []any{"A", "Z", 3.0, 1.0, "bus"}),
		}}

		_, err := NewGraphRepositoryWithExecutor(exec, nil).Load(ctx)

		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("Should reject connections with missing or non-numeric weights", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]*neo4j.EagerResult{
			stationsQuery: records(stationKeys,
				[]any{"A", "Central", 0.0, 0.0, "metro"},
				[]any{"B", "North", 0.0, 0.0, "metro"},
			),
			edgesQuery: records(edgeKeys,
				[]any{"A", "B", nil, "2.5km", "metro"},
				[]any{"B", "A", 4.0, 1.0, "metro"},
			),
		}}

		g, err := NewGraphRepositoryWithExecutor(exec, nil).Load(ctx)

		assert.Nil(t, g)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Contains(t, err.Error(), "A->B: missing or non-numeric travel_time, distance")
	})

	t.Run("Should report an unreachable database as unavailable", func(t *testing.T) {
		exec := &fakeExecutor{failOn: "MATCH (s:Station)"}

		_, err := NewGraphRepositoryWithExecutor(exec, nil).Load(ctx)

		assert.True(t, appErrors.IsUnavailable(err))
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write every station and edge into an empty database", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]*neo4j.EagerResult{
			countQuery: records([]string{"count"}, []any{int64(0)}),
		}}
		g := transit.DefaultNetwork()

		seeded, err := NewGraphRepositoryWithExecutor(exec, nil).Seed(ctx, g)

		require.NoError(t, err)
		assert.True(t, seeded)
		require.Len(t, exec.calls, 4)
		assert.Equal(t, constraintQuery, exec.calls[1].cypher)

		stations := exec.calls[2].params["stations"].([]any)
		assert.Len(t, stations, g.StationCount())
		edges := exec.calls[3].params["edges"].([]any)
		assert.Len(t, edges, g.EdgeCount())
		assert.True(t, exec.calls[3].write)
	})

	t.Run("Should skip seeding when stations exist", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]*neo4j.EagerResult{
			countQuery: records([]string{"count"}, []any{int64(5)}),
		}}

		seeded, err := NewGraphRepositoryWithExecutor(exec, nil).Seed(ctx, transit.DefaultNetwork())

		require.NoError(t, err)
		assert.False(t, seeded)
		assert.Len(t, exec.calls, 1)
	})

	t.Run("Should stop at the first failed write", func(t *testing.T) {
		exec := &fakeExecutor{failOn: "UNWIND $edges"}

		seeded, err := NewGraphRepositoryWithExecutor(exec, nil).Seed(ctx, transit.DefaultNetwork())

		assert.False(t, seeded)
		assert.True(t, appErrors.IsUnavailable(err))
	})
}

func TestClose(t *testing.T) {
	exec := &fakeExecutor{}
	require.NoError(t, NewGraphRepositoryWithExecutor(exec, nil).Close(context.Background()))
	assert.True(t, exec.closed)
}
