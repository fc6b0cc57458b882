package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metric names emitted by Sink.
const (
	MetricHistoryDropped = "history_dropped"
	MetricHistoryFailed  = "history_failed"
)

// MetricsRecorder receives sink counters.
type MetricsRecorder interface {
	IncrementCounter(name string, tags map[string]string)
}

// SinkConfig sizes the background writer.
type SinkConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// DefaultSinkConfig returns the production defaults.
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		QueueSize:    1000,
		Workers:      2,
		WriteTimeout: 5 * time.Second,
	}
}

// Sink writes history records without ever failing or slowing the caller.
type Sink struct {
	store   Store
	config  SinkConfig
	metrics MetricsRecorder
	logger  *zap.Logger

	mu     sync.RWMutex
	queue  chan Record
	closed bool
	wg     sync.WaitGroup

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewSink starts config.Workers goroutines draining the queue into store.
// metrics may be nil.
func NewSink(store Store, config SinkConfig, metrics MetricsRecorder, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSinkConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	s := &Sink{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan Record, config.QueueSize),
	}
	for i := 0; i < config.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Record writes rec synchronously. Any failure, including a panic in the
// store, is logged and reported as false.
func (s *Sink) Record(ctx context.Context, rec Record) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(rec, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	if err := s.store.Save(ctx, rec); err != nil {
		s.fail(rec, err)
		return false
	}
	return true
}

// Dispatch queues rec for a background write and returns immediately. When
// the queue is full or the sink is closed the record is dropped and counted.
func (s *Sink) Dispatch(rec Record) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(rec, "closed")
		return false
	}

	select {
	case s.queue <- rec:
		return true
	default:
		s.drop(rec, "queue_full")
		return false
	}
}

// Close stops accepting records and waits for queued ones to be written or
// for ctx to expire, whichever is first.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("History sink closed before queue drained",
			zap.Int("pending", len(s.queue)),
		)
		return ctx.Err()
	}
}

// Dropped returns the number of records discarded by Dispatch.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Failed returns the number of records the store rejected.
func (s *Sink) Failed() int64 {
	return s.failed.Load()
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		s.Record(ctx, rec)
		cancel()
	}
}

func (s *Sink) fail(rec Record, err error) {
	s.failed.Add(1)
	s.logger.Warn("Failed to record route history",
		zap.String("source", rec.Source),
		zap.String("destination", rec.Destination),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.IncrementCounter(MetricHistoryFailed, nil)
	}
}

func (s *Sink) drop(rec Record, reason string) {
	s.dropped.Add(1)
	s.logger.Warn("Dropped route history record",
		zap.String("source", rec.Source),
		zap.String("destination", rec.Destination),
		zap.String("reason", reason),
	)
	if s.metrics != nil {
		s.metrics.IncrementCounter(MetricHistoryDropped, map[string]string{"reason": reason})
	}
}
