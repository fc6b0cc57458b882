// Package handlers exposes the gateway and routing service over HTTP.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/middleware"
	"commuteos-backend/pkg/api"

	"go.uber.org/zap"
)

// RouteComputer computes a single route.
type RouteComputer interface {
	Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error)
}

// GraphSource returns the network currently served.
type GraphSource interface {
	Current() *transit.Graph
}

// ServiceInfo identifies a surface in / and /health.
type ServiceInfo struct {
	Name      string
	HealthID  string
	Version   string
	APIPrefix string
}

// decodeRouteRequest reads and validates a RouteRequest. It writes the 422
// itself and reports false when the body is unusable.
func decodeRouteRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (api.RouteRequest, bool) {
	var req api.RouteRequest
	err := api.DecodeAndValidate(r, &req)
	if err == nil {
		return req, true
	}

	logger.Warn("Invalid route request",
		zap.String("request_id", middleware.GetRequestIDFromRequest(r)),
		zap.Error(err),
	)

	var verr *api.ValidationError
	if errors.As(err, &verr) {
		api.ErrorWithDetail(w, http.StatusUnprocessableEntity, api.CodeValidation, "Invalid route request", verr.Error())
		return req, false
	}
	api.ErrorWithDetail(w, http.StatusUnprocessableEntity, api.CodeValidation, "Invalid request body", err.Error())
	return req, false
}

func noRouteDetail(source, destination string) string {
	return fmt.Sprintf("No route found between %s and %s", source, destination)
}

func health(info ServiceInfo) api.HealthResponse {
	return api.HealthResponse{
		Status:    "healthy",
		Service:   info.HealthID,
		Version:   info.Version,
		Timestamp: time.Now().UTC(),
	}
}

func root(info ServiceInfo) api.ServiceInfo {
	return api.ServiceInfo{
		Service:   info.Name,
		Version:   info.Version,
		Status:    "operational",
		APIPrefix: info.APIPrefix,
	}
}
