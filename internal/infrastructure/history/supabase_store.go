package history

import (
	"context"
	"time"

	appErrors "commuteos-backend/pkg/errors"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// DefaultTable is the history table name shared by the SQL-backed stores.
const DefaultTable = "routes_history"

// TableClient is satisfied by *supabase.Client.
type TableClient interface {
	From(table string) *postgrest.QueryBuilder
}

// supabaseRow matches the routes_history columns. The id and timestamp
// columns have server defaults, but the record values are sent so history
// written during an outage keeps its original time.
type supabaseRow struct {
	SourceStation  string    `json:"source_station"`
	TargetStation  string    `json:"target_station"`
	RoutePath      []string  `json:"route_path"`
	TotalTime      float64   `json:"total_time"`
	TotalDistance  *float64  `json:"total_distance"`
	Score          float64   `json:"score"`
	CacheHit       int       `json:"cache_hit"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// SupabaseStore inserts records through the Supabase REST API.
type SupabaseStore struct {
	client TableClient
	table  string
	logger *zap.Logger
}

// NewSupabaseClient creates a Supabase client for url and key.
func NewSupabaseClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to create Supabase client")
	}
	return client, nil
}

// NewSupabaseStore creates a store writing to table, or DefaultTable when
// table is empty.
func NewSupabaseStore(client TableClient, table string, logger *zap.Logger) *SupabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = DefaultTable
	}
	return &SupabaseStore{client: client, table: table, logger: logger}
}

// Save inserts rec. postgrest-go has no context support, so ctx is only
// checked before the request is sent.
func (s *SupabaseStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := supabaseRow{
		SourceStation:  rec.Source,
		TargetStation:  rec.Destination,
		RoutePath:      rec.Path,
		TotalTime:      rec.TotalTime,
		TotalDistance:  rec.TotalDistance,
		Score:          rec.Score,
		ResponseTimeMs: rec.ResponseTimeMs,
		Timestamp:      rec.Timestamp,
	}
	if rec.CacheHit {
		row.CacheHit = 1
	}

	_, _, err := s.client.From(s.table).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return appErrors.Wrap(err, "failed to insert history row")
	}

	s.logger.Debug("History row inserted", zap.String("table", s.table), zap.String("id", rec.ID))
	return nil
}
