package routing

import "math"

// Scoring horizons and weights. A trip of 60 minutes, 20 km or 10 hops
// scores zero on that component.
const (
	timeHorizonMinutes  = 60.0
	distanceHorizonKm   = 20.0
	hopsHorizon         = 10.0
	timeWeight          = 0.5
	distanceWeight      = 0.3
	hopsWeight          = 0.2
	scoreDecimalPlaces  = 3
	totalsDecimalPlaces = 2
)

// Score blends total time (minutes), total distance (km) and hop count
// (edges traversed) into a value in [0,1]. Higher is better. The result
// never increases when any input grows.
func Score(totalTime, totalDistance float64, hops int) float64 {
	timeScore := clamp01(1 - totalTime/timeHorizonMinutes)
	distanceScore := clamp01(1 - totalDistance/distanceHorizonKm)
	hopsScore := clamp01(1 - float64(hops)/hopsHorizon)

	return clamp01(timeWeight*timeScore + distanceWeight*distanceScore + hopsWeight*hopsScore)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
