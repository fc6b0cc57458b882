package handlers

import (
	"context"
	"net/http"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/middleware"
	"commuteos-backend/internal/service/orchestrator"
	"commuteos-backend/pkg/api"
	appErrors "commuteos-backend/pkg/errors"

	"go.uber.org/zap"
)

// RouteService is what the gateway needs from the orchestrator.
type RouteService interface {
	GetRoute(ctx context.Context, source, destination string) (*transit.RouteResult, error)
	ClearCache(ctx context.Context) bool
	Stats() orchestrator.Stats
}

// GatewayHandler serves the public API.
type GatewayHandler struct {
	routes RouteService
	info   ServiceInfo
	logger *zap.Logger
}

// NewGatewayHandler creates the gateway handler.
func NewGatewayHandler(routes RouteService, info ServiceInfo, logger *zap.Logger) *GatewayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if info.Name == "" {
		info.Name = "CommuteOS API Gateway"
	}
	if info.HealthID == "" {
		info.HealthID = "api_gateway"
	}
	return &GatewayHandler{routes: routes, info: info, logger: logger}
}

// Root handles GET /
func (h *GatewayHandler) Root(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, root(h.info))
}

// Health handles GET /health
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, health(h.info))
}

// GetRoute handles POST {prefix}/route
func (h *GatewayHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRouteRequest(w, r, h.logger)
	if !ok {
		return
	}

	h.logger.Info("Route request received",
		zap.String("source", req.Source),
		zap.String("destination", req.Destination),
		zap.String("request_id", middleware.GetRequestIDFromRequest(r)),
	)

	route, err := h.routes.GetRoute(r.Context(), req.Source, req.Destination)
	if err != nil {
		h.handleRouteError(w, req, err)
		return
	}

	api.Success(w, http.StatusOK, api.NewRouteResponse(route))
}

// ClearCache handles DELETE {prefix}/cache
func (h *GatewayHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.routes.ClearCache(r.Context()) {
		h.logger.Error("Failed to clear cache")
		api.ErrorWithDetail(w, http.StatusInternalServerError, api.CodeInternal, "Failed to clear cache", "Failed to clear cache")
		return
	}

	h.logger.Info("Cache cleared")
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "success", Message: "Cache cleared"})
}

// Stats handles GET {prefix}/stats
func (h *GatewayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.routes.Stats()
	api.Success(w, http.StatusOK, api.StatsResponse{
		TotalQueries:      stats.TotalQueries,
		CacheHits:         stats.CacheHits,
		CacheHitRate:      stats.CacheHitRate,
		AvgResponseTimeMs: stats.AvgResponseTimeMs,
	})
}

// handleRouteError is the single error-to-status mapping of the gateway.
func (h *GatewayHandler) handleRouteError(w http.ResponseWriter, req api.RouteRequest, err error) {
	switch {
	case appErrors.IsValidation(err):
		api.ErrorWithDetail(w, http.StatusUnprocessableEntity, api.CodeValidation, "Invalid route request", err.Error())
	case appErrors.IsNotFound(err):
		detail := noRouteDetail(req.Source, req.Destination)
		api.ErrorWithDetail(w, http.StatusNotFound, api.CodeNotFound, "Route not found", detail)
	default:
		// Orchestrator already logged the cause.
		api.ErrorWithDetail(w, http.StatusServiceUnavailable, api.CodeUnavailable, "Routing service unavailable", "Routing service unavailable")
	}
}
