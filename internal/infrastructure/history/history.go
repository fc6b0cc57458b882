// Package history persists one record per answered route query.
//
// Writes are strictly best effort: the Sink logs and counts failures but
// never lets them reach the caller, and Dispatch never blocks the request
// path.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"commuteos-backend/internal/domain/transit"

	"github.com/google/uuid"
)

// Record is one answered route query.
type Record struct {
	ID             string    `json:"id" dynamodbav:"id"`
	Source         string    `json:"source_station" dynamodbav:"source_station"`
	Destination    string    `json:"target_station" dynamodbav:"target_station"`
	Path           []string  `json:"route_path" dynamodbav:"route_path"`
	TotalTime      float64   `json:"total_time" dynamodbav:"total_time"`
	TotalDistance  *float64  `json:"total_distance" dynamodbav:"total_distance,omitempty"`
	Score          float64   `json:"score" dynamodbav:"score"`
	CacheHit       bool      `json:"cache_hit" dynamodbav:"cache_hit"`
	ResponseTimeMs float64   `json:"response_time_ms" dynamodbav:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// NewRecord builds a record for route answered in elapsed.
func NewRecord(source, destination string, route *transit.RouteResult, elapsed time.Duration, at time.Time) Record {
	rec := Record{
		ID:             uuid.NewString(),
		Source:         source,
		Destination:    destination,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000,
		Timestamp:      at.UTC(),
	}
	if route != nil {
		route = route.Clone()
		rec.Path = route.Path
		rec.TotalTime = route.EstimatedTime
		rec.TotalDistance = route.Distance
		rec.Score = route.BaseScore
		rec.CacheHit = route.Cached
	}
	return rec
}

// Store persists records.
//
//go:generate mockgen -source=history.go -destination=mocks/mock_store.go -package=mocks
type Store interface {
	Save(ctx context.Context, rec Record) error
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, rec Record) error

// Save calls f.
func (f StoreFunc) Save(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// NopStore discards records. Used when history is disabled.
type NopStore struct{}

// Save does nothing.
func (NopStore) Save(context.Context, Record) error { return nil }

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	limit   int
}

// NewMemoryStore keeps at most limit records, dropping the oldest first.
// limit <= 0 means unbounded.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

// Save appends rec.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.limit > 0 && len(s.records) > s.limit {
		s.records = slices.Delete(s.records, 0, len(s.records)-s.limit)
	}
	return nil
}

// List returns a copy of the stored records, oldest first.
func (s *MemoryStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Summary aggregates stored records.
type Summary struct {
	TotalQueries      int
	CacheHits         int
	AvgResponseTimeMs float64
}

// Stats summarizes the stored records.
func (s *MemoryStore) Stats() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	var total float64
	for _, r := range s.records {
		sum.TotalQueries++
		if r.CacheHit {
			sum.CacheHits++
		}
		total += r.ResponseTimeMs
	}
	if sum.TotalQueries > 0 {
		sum.AvgResponseTimeMs = total / float64(sum.TotalQueries)
	}
	return sum
}

// MultiStore writes every record to all of its stores.
type MultiStore []Store

// Save writes to every store and joins the failures.
func (m MultiStore) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
