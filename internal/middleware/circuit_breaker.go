package middleware

import (
	"errors"
	"net/http"

	"commuteos-backend/internal/infrastructure/resilience"
	"commuteos-backend/pkg/api"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errServerFailure = errors.New("handler responded with 5xx")

// CircuitBreaker fails fast with 503 once the wrapped handlers keep
// answering with server errors.
func CircuitBreaker(config resilience.BreakerConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := resilience.NewBreaker(config, nil, logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := cb.Execute(func() (interface{}, error) {
				sw := newStatusWriter(w)
				next.ServeHTTP(sw, r)

				if sw.status >= http.StatusInternalServerError {
					return nil, errServerFailure
				}
				return nil, nil
			})

			switch {
			case err == nil, errors.Is(err, errServerFailure):
				// The handler already wrote its response.
			case errors.Is(err, gobreaker.ErrOpenState):
				logger.Warn("Circuit breaker open, rejecting request",
					zap.String("breaker", config.Name),
					zap.String("path", r.URL.Path),
					zap.String("request_id", GetRequestIDFromRequest(r)),
				)
				api.Error(w, http.StatusServiceUnavailable, api.CodeUnavailable, "Service temporarily unavailable - too many failures")
			case errors.Is(err, gobreaker.ErrTooManyRequests):
				api.Error(w, http.StatusServiceUnavailable, api.CodeUnavailable, "Service temporarily unavailable - too many requests")
			default:
				logger.Error("Circuit breaker internal error", zap.String("breaker", config.Name), zap.Error(err))
				api.Error(w, http.StatusInternalServerError, api.CodeInternal, "Service error")
			}
		})
	}
}
