package transit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	appErrors "commuteos-backend/pkg/errors"
)

// Graph is the immutable transit network. All methods are safe for
// concurrent use because nothing mutates a Graph after Build.
type Graph struct {
	stations  map[string]Station
	adjacency map[string][]Edge
	edgeCount int
	source    string
}

// Station returns the station with the given id.
func (g *Graph) Station(id string) (Station, error) {
	s, ok := g.stations[id]
	if !ok {
		return Station{}, appErrors.NewNotFound(fmt.Sprintf("station %s not found", id))
	}
	return s, nil
}

// HasStation reports whether id is a station of the network.
func (g *Graph) HasStation(id string) bool {
	_, ok := g.stations[id]
	return ok
}

// Neighbors returns the targets of the outgoing edges of id, in load order.
func (g *Graph) Neighbors(id string) []string {
	edges := g.adjacency[id]
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out
}

// Edges returns a copy of the outgoing edges of id, in load order.
func (g *Graph) Edges(id string) []Edge {
	edges := g.adjacency[id]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// ForEachEdge calls fn for every outgoing edge of id in load order without copying.
func (g *Graph) ForEachEdge(id string, fn func(Edge)) {
	for _, e := range g.adjacency[id] {
		fn(e)
	}
}

// StationIDs returns every station id in ascending order.
func (g *Graph) StationIDs() []string {
	ids := make([]string, 0, len(g.stations))
	for id := range g.stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllEdges returns every edge, grouped by source in ascending source order
// and in load order within a source.
func (g *Graph) AllEdges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, id := range g.StationIDs() {
		out = append(out, g.adjacency[id]...)
	}
	return out
}

func (g *Graph) StationCount() int { return len(g.stations) }
func (g *Graph) EdgeCount() int    { return g.edgeCount }

// Source tells where the graph came from, e.g. "file" or "default_fallback".
func (g *Graph) Source() string { return g.source }

// IsFallback reports whether this is the built-in default network.
func (g *Graph) IsFallback() bool { return g.source == SourceDefaultFallback }

// Builder collects stations and edges and validates them together.
// A Builder is not safe for concurrent use.
type Builder struct {
	source   string
	stations map[string]Station
	edges    []Edge
	errs     []error
}

// NewBuilder starts a graph with the given provenance label.
func NewBuilder(source string) *Builder {
	return &Builder{
		source:   source,
		stations: make(map[string]Station),
	}
}

// AddStation registers a station. Duplicate ids are recorded as errors.
func (b *Builder) AddStation(s Station) *Builder {
	if s.ID == "" {
		b.errs = append(b.errs, errors.New("station with empty id"))
		return b
	}
	if _, exists := b.stations[s.ID]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate station %s", s.ID))
		return b
	}
	b.stations[s.ID] = s
	return b
}

// AddEdge registers a directed edge. Endpoints are checked in Build so
// stations and edges may be added in any order.
func (b *Builder) AddEdge(e Edge) *Builder {
	if err := checkWeight(e.TravelTime); err != nil {
		b.errs = append(b.errs, fmt.Errorf("edge %s->%s: travel time %w", e.Source, e.Target, err))
	}
	if err := checkWeight(e.Distance); err != nil {
		b.errs = append(b.errs, fmt.Errorf("edge %s->%s: distance %w", e.Source, e.Target, err))
	}
	if e.TransportType == "" {
		e.TransportType = UnknownTransportType
	}
	b.edges = append(b.edges, e)
	return b
}

// Reject records a load-time problem found outside the builder, such as a
// record that could not be decoded. It fails the next Build.
func (b *Builder) Reject(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

func checkWeight(v float64) error {
	switch {
	case math.IsNaN(v):
		return errors.New("is not a number")
	case math.IsInf(v, 0):
		return errors.New("is infinite")
	case v < 0:
		return errors.New("is negative")
	}
	return nil
}

// Build validates the collected network and returns the immutable graph.
// Every integrity violation is reported in a single validation error.
func (b *Builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)

	adjacency := make(map[string][]Edge, len(b.stations))
	for _, e := range b.edges {
		if _, ok := b.stations[e.Source]; !ok {
			errs = append(errs, fmt.Errorf("edge %s: undefined source station %s", e, e.Source))
			continue
		}
		if _, ok := b.stations[e.Target]; !ok {
			errs = append(errs, fmt.Errorf("edge %s: undefined target station %s", e, e.Target))
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e)
	}

	if len(errs) > 0 {
		return nil, &appErrors.AppError{
			Type:    appErrors.ErrorTypeValidation,
			Message: "invalid transit network",
			Err:     errors.Join(errs...),
		}
	}

	stations := make(map[string]Station, len(b.stations))
	for id, s := range b.stations {
		stations[id] = s
	}

	return &Graph{
		stations:  stations,
		adjacency: adjacency,
		edgeCount: len(b.edges),
		source:    b.source,
	}, nil
}
