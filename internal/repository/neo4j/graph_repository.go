// Package neo4j persists the transit network as a property graph.
//
// Stations are (:Station {id, name, latitude, longitude, type}) nodes and
// every directed edge is a [:CONNECTS {travel_time, distance, transport_type}]
// relationship between two of them.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const (
	stationsQuery = `
MATCH (s:Station)
RETURN s.id AS id, s.name AS name, s.latitude AS latitude, s.longitude AS longitude, s.type AS type
ORDER BY id`

	edgesQuery = `
MATCH (a:Station)-[r:CONNECTS]->(b:Station)
RETURN a.id AS source, b.id AS target, r.travel_time AS travel_time, r.distance AS distance, r.transport_type AS transport_type
ORDER BY source, target`

	countQuery = `MATCH (s:Station) RETURN count(s) AS count`

	constraintQuery = `CREATE CONSTRAINT station_id IF NOT EXISTS FOR (s:Station) REQUIRE s.id IS UNIQUE`

	seedStationsQuery = `
UNWIND $stations AS row
MERGE (s:Station {id: row.id})
SET s.name = row.name, s.latitude = row.latitude, s.longitude = row.longitude, s.type = row.type`

	seedEdgesQuery = `
UNWIND $edges AS row
MATCH (a:Station {id: row.source}), (b:Station {id: row.target})
CREATE (a)-[:CONNECTS {travel_time: row.travel_time, distance: row.distance, transport_type: row.transport_type}]->(b)`
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Executor runs a single Cypher statement and collects its records.
type Executor interface {
	Execute(ctx context.Context, cypher string, params map[string]any, write bool) (*neo4j.EagerResult, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

type driverExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverExecutor) Execute(ctx context.Context, cypher string, params map[string]any, write bool) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if write {
		opts = []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithWritersRouting()}
	}
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	return neo4j.ExecuteQuery(ctx, d.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
}

func (d *driverExecutor) VerifyConnectivity(ctx context.Context) error {
	return d.driver.VerifyConnectivity(ctx)
}

func (d *driverExecutor) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// GraphRepository loads and seeds the transit network. It satisfies
// network.Loader.
type GraphRepository struct {
	exec   Executor
	logger *zap.Logger
}

// NewGraphRepository opens a driver for cfg. The connection is not checked
// until VerifyConnectivity or the first query.
func NewGraphRepository(cfg Config, logger *zap.Logger) (*GraphRepository, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	return NewGraphRepositoryWithExecutor(&driverExecutor{driver: driver, database: cfg.Database}, logger), nil
}

// NewGraphRepositoryWithExecutor builds a repository over an existing executor.
func NewGraphRepositoryWithExecutor(exec Executor, logger *zap.Logger) *GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{exec: exec, logger: logger}
}

// VerifyConnectivity checks that the database is reachable.
func (r *GraphRepository) VerifyConnectivity(ctx context.Context) error {
	if err := r.exec.VerifyConnectivity(ctx); err != nil {
		return appErrors.NewUnavailable("neo4j unreachable", err)
	}
	return nil
}

// Close releases the driver.
func (r *GraphRepository) Close(ctx context.Context) error {
	return r.exec.Close(ctx)
}

// Load reads every station and relationship into a new graph.
func (r *GraphRepository) Load(ctx context.Context) (*transit.Graph, error) {
	stations, err := r.exec.Execute(ctx, stationsQuery, nil, false)
	if err != nil {
		return nil, appErrors.NewUnavailable("failed to read stations", err)
	}
	edges, err := r.exec.Execute(ctx, edgesQuery, nil, false)
	if err != nil {
		return nil, appErrors.NewUnavailable("failed to read connections", err)
	}

	b := transit.NewBuilder(transit.SourceNeo4j)
	for _, rec := range stations.Records {
		b.AddStation(stationFromRecord(rec))
	}
	for _, rec := range edges.Records {
		e, err := edgeFromRecord(rec)
		if err != nil {
			b.Reject(err)
			continue
		}
		b.AddEdge(e)
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}

	r.logger.Info("Network loaded from neo4j",
		zap.String("source", g.Source()),
		zap.Int("stations", g.StationCount()),
		zap.Int("edges", g.EdgeCount()),
	)
	return g, nil
}

// Seed writes g into an empty database. It returns false without writing
// when stations already exist.
func (r *GraphRepository) Seed(ctx context.Context, g *transit.Graph) (bool, error) {
	count, err := r.exec.Execute(ctx, countQuery, nil, false)
	if err != nil {
		return false, appErrors.NewUnavailable("failed to count stations", err)
	}
	if existing := countOf(count); existing > 0 {
		r.logger.Info("Stations already exist, skipping seed", zap.Int64("count", existing))
		return false, nil
	}

	if _, err := r.exec.Execute(ctx, constraintQuery, nil, true); err != nil {
		return false, appErrors.NewUnavailable("failed to create station constraint", err)
	}

	ids := g.StationIDs()
	stationRows := make([]any, 0, len(ids))
	for _, id := range ids {
		s, _ := g.Station(id)
		stationRows = append(stationRows, map[string]any{
			"id":        s.ID,
			"name":      s.Name,
			"latitude":  s.Latitude,
			"longitude": s.Longitude,
			"type":      s.Type,
		})
	}
	if _, err := r.exec.Execute(ctx, seedStationsQuery, map[string]any{"stations": stationRows}, true); err != nil {
		return false, appErrors.NewUnavailable("failed to seed stations", err)
	}

	all := g.AllEdges()
	edgeRows := make([]any, 0, len(all))
	for _, e := range all {
		edgeRows = append(edgeRows, map[string]any{
			"source":         e.Source,
			"target":         e.Target,
			"travel_time":    e.TravelTime,
			"distance":       e.Distance,
			"transport_type": e.TransportType,
		})
	}
	if _, err := r.exec.Execute(ctx, seedEdgesQuery, map[string]any{"edges": edgeRows}, true); err != nil {
		return false, appErrors.NewUnavailable("failed to seed connections", err)
	}

	r.logger.Info("Network seeded into neo4j",
		zap.Int("stations", len(stationRows)),
		zap.Int("edges", len(edgeRows)),
	)
	return true, nil
}

func stationFromRecord(rec *neo4j.Record) transit.Station {
	id := stringValue(rec, "id")
	name := stringValue(rec, "name")
	if name == "" {
		name = id
	}
	kind := stringValue(rec, "type")
	if kind == "" {
		kind = "unknown"
	}
	return transit.Station{
		ID:        id,
		Name:      name,
		Latitude:  coordinate(rec, "latitude"),
		Longitude: coordinate(rec, "longitude"),
		Type:      kind,
	}
}

// edgeFromRecord rejects absent or non-numeric weights rather than
// reading them as zero.
func edgeFromRecord(rec *neo4j.Record) (transit.Edge, error) {
	e := transit.Edge{
		Source:        stringValue(rec, "source"),
		Target:        stringValue(rec, "target"),
		TransportType: stringValue(rec, "transport_type"),
	}
	var missing []string
	var ok bool
	if e.TravelTime, ok = floatValue(rec, "travel_time"); !ok {
		missing = append(missing, "travel_time")
	}
	if e.Distance, ok = floatValue(rec, "distance"); !ok {
		missing = append(missing, "distance")
	}
	if len(missing) > 0 {
		return e, fmt.Errorf("connection %s->%s: missing or non-numeric %s", e.Source, e.Target, strings.Join(missing, ", "))
	}
	return e, nil
}

func countOf(result *neo4j.EagerResult) int64 {
	if result == nil || len(result.Records) == 0 {
		return 0
	}
	v, _ := result.Records[0].Get("count")
	n, _ := v.(int64)
	return n
}

func stringValue(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

// floatValue accepts both integer and float properties. It reports false
// for null, absent or non-numeric values.
func floatValue(rec *neo4j.Record, key string) (float64, bool) {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// coordinate reads an informational coordinate, defaulting to zero.
func coordinate(rec *neo4j.Record, key string) float64 {
	v, _ := floatValue(rec, key)
	return v
}
