package network

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"commuteos-backend/internal/domain/transit"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// SwapFunc is called after a graph with a different fingerprint is published.
type SwapFunc func(previous, current *transit.Graph)

// Store publishes the current graph. Readers call Current and get either the
// old or the new graph in full; a graph is never visible half built.
type Store struct {
	current     atomic.Pointer[snapshot]
	reloadMu    sync.Mutex
	listenersMu sync.RWMutex
	listeners   []SwapFunc
	logger      *zap.Logger
}

type snapshot struct {
	graph       *transit.Graph
	fingerprint uint64
}

// NewStore creates a store holding g.
func NewStore(g *transit.Graph, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	s.current.Store(&snapshot{graph: g, fingerprint: Fingerprint(g)})
	return s
}

// Open loads the initial graph through loader.
func Open(ctx context.Context, loader Loader, logger *zap.Logger) (*Store, error) {
	g, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(g, logger), nil
}

// Current returns the published graph.
func (s *Store) Current() *transit.Graph {
	return s.current.Load().graph
}

// Fingerprint returns the hash of the published graph.
func (s *Store) Fingerprint() uint64 {
	return s.current.Load().fingerprint
}

// OnSwap registers fn to run after each topology change.
func (s *Store) OnSwap(fn SwapFunc) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Swap publishes g and returns the graph it replaced. Listeners only run
// when the topology actually changed.
func (s *Store) Swap(g *transit.Graph) *transit.Graph {
	next := &snapshot{graph: g, fingerprint: Fingerprint(g)}
	prev := s.current.Swap(next)

	if prev.fingerprint == next.fingerprint {
		s.logger.Debug("Network unchanged after swap", zap.Uint64("fingerprint", next.fingerprint))
		return prev.graph
	}

	s.logger.Info("Network swapped",
		zap.String("source", g.Source()),
		zap.Int("stations", g.StationCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Uint64("fingerprint", next.fingerprint),
	)

	s.listenersMu.RLock()
	listeners := append([]SwapFunc(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(prev.graph, g)
	}
	return prev.graph
}

// Reload builds a new graph with loader and publishes it. On error the
// current graph stays in place.
func (s *Store) Reload(ctx context.Context, loader Loader) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	g, err := loader.Load(ctx)
	if err != nil {
		s.logger.Error("Network reload failed, keeping current network", zap.Error(err))
		return err
	}
	s.Swap(g)
	return nil
}

// Fingerprint hashes the stations and edges of g in a canonical order.
func Fingerprint(g *transit.Graph) uint64 {
	if g == nil {
		return 0
	}
	h := xxhash.New()
	var buf [8]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}
	writeString := func(v string) {
		_, _ = h.WriteString(v)
		_, _ = h.Write([]byte{0})
	}

	for _, id := range g.StationIDs() {
		st, _ := g.Station(id)
		writeString(st.ID)
		writeString(st.Name)
		writeString(st.Type)
		writeFloat(st.Latitude)
		writeFloat(st.Longitude)
	}
	for _, e := range g.AllEdges() {
		writeString(e.Source)
		writeString(e.Target)
		writeString(e.TransportType)
		writeFloat(e.TravelTime)
		writeFloat(e.Distance)
	}
	return h.Sum64()
}
