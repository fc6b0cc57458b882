package handlers

import (
	"fmt"
	"net/http"
	"time"

	"commuteos-backend/internal/middleware"
	"commuteos-backend/pkg/api"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RoutingHandler serves the internal routing service.
type RoutingHandler struct {
	computer RouteComputer
	graphs   GraphSource
	info     ServiceInfo
	logger   *zap.Logger
}

// NewRoutingHandler creates the routing service handler.
func NewRoutingHandler(computer RouteComputer, graphs GraphSource, info ServiceInfo, logger *zap.Logger) *RoutingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if info.Name == "" {
		info.Name = "CommuteOS Routing Service"
	}
	if info.HealthID == "" {
		info.HealthID = "routing_service"
	}
	return &RoutingHandler{computer: computer, graphs: graphs, info: info, logger: logger}
}

// Root handles GET /
func (h *RoutingHandler) Root(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, root(h.info))
}

// Health handles GET /health
func (h *RoutingHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, health(h.info))
}

// Compute handles POST /compute
func (h *RoutingHandler) Compute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRouteRequest(w, r, h.logger)
	if !ok {
		return
	}

	start := time.Now()
	log := h.logger.With(
		zap.String("source", req.Source),
		zap.String("destination", req.Destination),
		zap.String("request_id", middleware.GetRequestIDFromRequest(r)),
	)
	log.Info("Computing route")

	route, err := h.computer.Compute(r.Context(), req.Source, req.Destination)
	switch {
	case err == nil:
	case appErrors.IsNotFound(err):
		log.Warn("Route not found", zap.Error(err))
		api.ErrorWithDetail(w, http.StatusNotFound, api.CodeNotFound, "Route not found", noRouteDetail(req.Source, req.Destination))
		return
	default:
		log.Error("Route computation failed", zap.Error(err))
		api.ErrorWithDetail(w, http.StatusInternalServerError, api.CodeInternal, "Route computation failed", err.Error())
		return
	}

	log.Info("Route computed successfully", zap.Duration("elapsed", time.Since(start)))

	resp := api.NewRouteResponse(route)
	resp.Cached = false
	api.Success(w, http.StatusOK, resp)
}

// Station handles GET /station/{id}
func (h *RoutingHandler) Station(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	station, err := h.graphs.Current().Station(id)
	if err != nil {
		api.ErrorWithDetail(w, http.StatusNotFound, api.CodeNotFound, "Station not found", fmt.Sprintf("Station %s not found", id))
		return
	}

	api.Success(w, http.StatusOK, api.NewStationResponse(station))
}
