// Package api defines the contracts for API requests and responses shared by
// the gateway, the routing service and the remote routing client.
// It decouples the API structure from the internal domain models.
package api

import (
	"time"

	"commuteos-backend/internal/domain/transit"
)

// RouteRequest is the body of POST {prefix}/route and POST /compute.
type RouteRequest struct {
	Source      string `json:"source" validate:"required,max=50"`
	Destination string `json:"destination" validate:"required,max=50"`
}

// RouteResponse is the API representation of a computed route.
type RouteResponse struct {
	Path          []string `json:"path"`
	EstimatedTime float64  `json:"estimated_time"`
	Distance      *float64 `json:"distance"`
	BaseScore     float64  `json:"base_score"`
	Cached        bool     `json:"cached"`
}

// NewRouteResponse converts a domain route.
func NewRouteResponse(r *transit.RouteResult) RouteResponse {
	return RouteResponse{
		Path:          r.Path,
		EstimatedTime: r.EstimatedTime,
		Distance:      r.Distance,
		BaseScore:     r.BaseScore,
		Cached:        r.Cached,
	}
}

// ToDomain converts the response back into a domain route.
func (r RouteResponse) ToDomain() *transit.RouteResult {
	return &transit.RouteResult{
		Path:          r.Path,
		EstimatedTime: r.EstimatedTime,
		Distance:      r.Distance,
		BaseScore:     r.BaseScore,
		Cached:        r.Cached,
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Message string  `json:"message"`
	Detail  *string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	APIPrefix string `json:"api_prefix,omitempty"`
}

// StatusResponse is the body of administrative operations.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatsResponse is the body of GET {prefix}/stats.
type StatsResponse struct {
	TotalQueries      int64   `json:"total_queries"`
	CacheHits         int64   `json:"cache_hits"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// StationResponse is the body of GET /station/{id}.
type StationResponse struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Type      string  `json:"type"`
}

// NewStationResponse converts a domain station.
func NewStationResponse(s transit.Station) StationResponse {
	return StationResponse{
		StationID: s.ID,
		Name:      s.Name,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Type:      s.Type,
	}
}
