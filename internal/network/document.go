// Package network loads the transit graph and publishes it to readers.
package network

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Format of a network document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is the on-disk network definition.
type Document struct {
	Stations map[string]StationDoc `json:"stations" yaml:"stations"`
	Edges    []EdgeDoc             `json:"edges" yaml:"edges"`
}

// StationDoc is one entry of the stations mapping.
type StationDoc struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Type      string  `json:"type" yaml:"type"`
}

// EdgeDoc is one entry of the edges list. Weights are pointers so that an
// absent field is rejected instead of read as zero.
type EdgeDoc struct {
	Source        string   `json:"source" yaml:"source"`
	Target        string   `json:"target" yaml:"target"`
	Distance      *float64 `json:"distance" yaml:"distance"`
	TravelTime    *float64 `json:"travel_time" yaml:"travel_time"`
	TransportType string   `json:"transport_type,omitempty" yaml:"transport_type,omitempty"`
}

// Decode parses a network document.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, appErrors.Wrap(appErrors.NewValidation(err.Error()), "decode network document")
	}
	return &doc, nil
}

// Build validates the document and turns it into a graph. Stations are
// added in ascending id order; edges keep document order.
func (d *Document) Build(source string) (*transit.Graph, error) {
	b := transit.NewBuilder(source)

	ids := make([]string, 0, len(d.Stations))
	for id := range d.Stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := d.Stations[id]
		name := s.Name
		if name == "" {
			name = id
		}
		stationType := s.Type
		if stationType == "" {
			stationType = "unknown"
		}
		b.AddStation(transit.Station{
			ID:        id,
			Name:      name,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Type:      stationType,
		})
	}

	var missing []string
	for i, e := range d.Edges {
		if e.TravelTime == nil {
			missing = append(missing, fmt.Sprintf("edge %d (%s->%s): travel_time is required", i, e.Source, e.Target))
		}
		if e.Distance == nil {
			missing = append(missing, fmt.Sprintf("edge %d (%s->%s): distance is required", i, e.Source, e.Target))
		}
		if e.TravelTime == nil || e.Distance == nil {
			continue
		}
		b.AddEdge(transit.Edge{
			Source:        e.Source,
			Target:        e.Target,
			TravelTime:    *e.TravelTime,
			Distance:      *e.Distance,
			TransportType: e.TransportType,
		})
	}
	if len(missing) > 0 {
		return nil, appErrors.NewValidation("invalid network document: " + strings.Join(missing, "; "))
	}

	return b.Build()
}

// FromGraph converts a graph back into its document form.
func FromGraph(g *transit.Graph) *Document {
	doc := &Document{Stations: make(map[string]StationDoc, g.StationCount())}
	for _, id := range g.StationIDs() {
		s, _ := g.Station(id)
		doc.Stations[id] = StationDoc{Name: s.Name, Latitude: s.Latitude, Longitude: s.Longitude, Type: s.Type}
	}
	for _, e := range g.AllEdges() {
		travel, distance := e.TravelTime, e.Distance
		doc.Edges = append(doc.Edges, EdgeDoc{
			Source:        e.Source,
			Target:        e.Target,
			TravelTime:    &travel,
			Distance:      &distance,
			TransportType: e.TransportType,
		})
	}
	return doc
}
