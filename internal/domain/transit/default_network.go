package transit

// DefaultNetwork returns the built-in five station network that keeps the
// service runnable when no network definition is available. Its Source is
// SourceDefaultFallback so it can be told apart from a production load.
//
//	Station_A -12-> Station_C -15-> Station_B
//	Station_A  -8-> Station_D -10-> Station_E -18-> Station_B
//	Station_A -20-> Station_E
func DefaultNetwork() *Graph {
	b := NewBuilder(SourceDefaultFallback)

	b.AddStation(Station{ID: "Station_A", Name: "Central Station", Latitude: 40.7589, Longitude: -73.9851, Type: "metro"}).
		AddStation(Station{ID: "Station_B", Name: "East Terminal", Latitude: 40.7614, Longitude: -73.9776, Type: "metro"}).
		AddStation(Station{ID: "Station_C", Name: "North Hub", Latitude: 40.7648, Longitude: -73.9808, Type: "bus"}).
		AddStation(Station{ID: "Station_D", Name: "West Plaza", Latitude: 40.7580, Longitude: -73.9855, Type: "bus"}).
		AddStation(Station{ID: "Station_E", Name: "South Gateway", Latitude: 40.7556, Longitude: -73.9780, Type: "metro"})

	b.AddEdge(Edge{Source: "Station_A", Target: "Station_C", TravelTime: 12, Distance: 2.5, TransportType: "metro"}).
		AddEdge(Edge{Source: "Station_C", Target: "Station_B", TravelTime: 15, Distance: 3.1, TransportType: "bus"}).
		AddEdge(Edge{Source: "Station_A", Target: "Station_D", TravelTime: 8, Distance: 1.8, TransportType: "bus"}).
		AddEdge(Edge{Source: "Station_D", Target: "Station_E", TravelTime: 10, Distance: 2.2, TransportType: "metro"}).
		AddEdge(Edge{Source: "Station_E", Target: "Station_B", TravelTime: 18, Distance: 3.8, TransportType: "metro"}).
		AddEdge(Edge{Source: "Station_A", Target: "Station_E", TravelTime: 20, Distance: 4.5, TransportType: "bus"})

	g, err := b.Build()
	if err != nil {
		// The topology above is static; a failure here is a programming error.
		panic(err)
	}
	return g
}
