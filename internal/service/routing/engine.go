// Package routing computes shortest routes over the transit network.
package routing

import (
	"container/heap"
	"context"
	"slices"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"go.uber.org/zap"
)

// Engine runs Dijkstra over a transit.Graph. It holds no graph state, so one
// Engine serves every graph version.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a route engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ComputeRoute returns the minimum travel time route from source to
// destination.
//
// Equal travel times are broken by fewer hops, then by the lexicographically
// smaller sequence of station ids, so the answer depends only on the graph
// contents and never on edge insertion order.
func (e *Engine) ComputeRoute(ctx context.Context, g *transit.Graph, source, destination string) (*transit.RouteResult, error) {
	if !g.HasStation(source) {
		e.logger.Warn("Source station not found", zap.String("station", source))
		return nil, appErrors.NewInvalidStation(source)
	}
	if !g.HasStation(destination) {
		e.logger.Warn("Destination station not found", zap.String("station", destination))
		return nil, appErrors.NewInvalidStation(destination)
	}

	best := make(map[string]*label)
	settled := make(map[string]bool)

	start := &label{station: source, path: []string{source}}
	best[source] = start
	pq := &priorityQueue{start}

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.NewUnavailable("route computation cancelled", err)
		}

		cur := heap.Pop(pq).(*label)
		if settled[cur.station] || best[cur.station] != cur {
			continue
		}
		settled[cur.station] = true

		if cur.station == destination {
			result := cur.toResult()
			e.logger.Debug("Route computed",
				zap.String("source", source),
				zap.String("destination", destination),
				zap.Int("hops", result.Hops()),
				zap.Float64("time", result.EstimatedTime),
			)
			return result, nil
		}

		g.ForEachEdge(cur.station, func(edge transit.Edge) {
			if settled[edge.Target] {
				return
			}
			next := cur.extend(edge)
			if prev, ok := best[edge.Target]; ok && !next.less(prev) {
				return
			}
			best[edge.Target] = next
			heap.Push(pq, next)
		})
	}

	e.logger.Warn("No path found", zap.String("source", source), zap.String("destination", destination))
	return nil, appErrors.NewRouteNotFound(source, destination)
}

// label is a tentative route to station.
type label struct {
	station  string
	time     float64
	distance float64
	path     []string
	index    int
}

func (l *label) extend(edge transit.Edge) *label {
	path := make([]string, len(l.path)+1)
	copy(path, l.path)
	path[len(l.path)] = edge.Target
	return &label{
		station:  edge.Target,
		time:     l.time + edge.TravelTime,
		distance: l.distance + edge.Distance,
		path:     path,
	}
}

// less orders labels by time, then hops, then path. Appending the same edge
// to two labels preserves their order, which keeps Dijkstra exact under the
// tie-break.
func (l *label) less(o *label) bool {
	if l.time != o.time {
		return l.time < o.time
	}
	if len(l.path) != len(o.path) {
		return len(l.path) < len(o.path)
	}
	return slices.Compare(l.path, o.path) < 0
}

func (l *label) toResult() *transit.RouteResult {
	distance := round(l.distance, totalsDecimalPlaces)
	hops := len(l.path) - 1
	return &transit.RouteResult{
		Path:          l.path,
		EstimatedTime: round(l.time, totalsDecimalPlaces),
		Distance:      &distance,
		BaseScore:     round(Score(l.time, l.distance, hops), scoreDecimalPlaces),
	}
}

// priorityQueue is a min-heap of labels.
type priorityQueue []*label

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].less(pq[j]) }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*label)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
