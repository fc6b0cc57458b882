// Package transit implements the station/edge network that routes are computed over.
//
// PURPOSE: Holds the immutable, weighted, directed graph of the transit network.
// A Graph is assembled once through a Builder, validated as a whole, and then
// shared read-only by every concurrent request. Topology changes never mutate
// a Graph; a new one is built and published in its place.
//
// KEY RULES:
//   • Travel time is the only routing cost; distance is reported, never compared
//   • Edges are directed; a two-way link is two edges
//   • Every edge endpoint must be a defined station
//   • Coordinates are informational only
package transit

import "fmt"

// Station is a node of the transit network.
type Station struct {
	ID        string  `json:"station_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Type      string  `json:"type"`
}

// Edge is a directed connection between two stations.
type Edge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	TravelTime    float64 `json:"travel_time"` // minutes
	Distance      float64 `json:"distance"`    // km
	TransportType string  `json:"transport_type"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s->%s(%.2fmin)", e.Source, e.Target, e.TravelTime)
}

// Provenance labels for Graph.Source.
const (
	SourceFile            = "file"
	SourceNeo4j           = "neo4j"
	SourceInline          = "inline"
	SourceDefaultFallback = "default_fallback"
)

// UnknownTransportType is used when an edge does not name its mode.
const UnknownTransportType = "unknown"
