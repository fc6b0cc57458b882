package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commuteos-backend/internal/domain/transit"
	"commuteos-backend/internal/infrastructure/resilience"
	"commuteos-backend/pkg/api"
	appErrors "commuteos-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// RemoteConfig configures RemoteProvider.
type RemoteConfig struct {
	// BaseURL of the routing service, e.g. http://routing_service:8001
	BaseURL string
	Timeout time.Duration
	Breaker resilience.BreakerConfig
}

// RemoteProvider calls the routing service's POST /compute.
type RemoteProvider struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewRemoteProvider creates a client for the routing service. client may be
// nil, in which case http.DefaultClient's transport is used.
func NewRemoteProvider(config RemoteConfig, client *http.Client, logger *zap.Logger) *RemoteProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Breaker.Name == "" {
		config.Breaker = resilience.DefaultBreakerConfig("routing-service")
	}

	// Not-found answers prove the service is healthy and must not trip the breaker.
	isSuccessful := func(err error) bool {
		return err == nil || appErrors.IsNotFound(err)
	}

	return &RemoteProvider{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		timeout: config.Timeout,
		client:  client,
		breaker: resilience.NewBreaker(config.Breaker, isSuccessful, logger),
		logger:  logger,
	}
}

// Compute asks the routing service for a route.
func (p *RemoteProvider) Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.call(ctx, source, destination)
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return nil, appErrors.NewUnavailable("Routing service unavailable", err)
		}
		return nil, err
	}
	return result.(*transit.RouteResult), nil
}

func (p *RemoteProvider) call(ctx context.Context, source, destination string) (*transit.RouteResult, error) {
	body, err := json.Marshal(api.RouteRequest{Source: source, Destination: destination})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to encode compute request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/compute", bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build compute request")
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("Routing service timed out",
				zap.String("source", source),
				zap.String("destination", destination),
				zap.Duration("timeout", p.timeout),
			)
		}
		return nil, appErrors.NewUnavailable("Routing service unavailable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, appErrors.NewUnavailable("Routing service unavailable", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var route api.RouteResponse
		if err := json.Unmarshal(payload, &route); err != nil {
			return nil, appErrors.NewUnavailable("Routing service returned an invalid body", err)
		}
		result := route.ToDomain()
		if err := checkRoute(result, source, destination); err != nil {
			p.logger.Error("Routing service returned an invalid route",
				zap.String("source", source),
				zap.String("destination", destination),
				zap.Error(err),
			)
			return nil, appErrors.NewUnavailable("Routing service returned an invalid route", err)
		}
		return result, nil

	case http.StatusNotFound:
		message := fmt.Sprintf("No route found between %s and %s", source, destination)
		var body api.ErrorResponse
		if json.Unmarshal(payload, &body) == nil && body.Detail != nil {
			message = *body.Detail
		}
		return nil, appErrors.NewNotFound(message)

	default:
		p.logger.Error("Routing service error",
			zap.Int("status", resp.StatusCode),
			zap.String("source", source),
			zap.String("destination", destination),
		)
		return nil, appErrors.NewUnavailable(
			fmt.Sprintf("Routing service returned status %d", resp.StatusCode), nil)
	}
}

// checkRoute verifies a decoded route before it can reach the cache.
func checkRoute(r *transit.RouteResult, source, destination string) error {
	switch {
	case len(r.Path) == 0:
		return errors.New("empty path")
	case r.Path[0] != source || r.Path[len(r.Path)-1] != destination:
		return fmt.Errorf("path %v does not run from %s to %s", r.Path, source, destination)
	case r.EstimatedTime < 0:
		return fmt.Errorf("negative estimated time %v", r.EstimatedTime)
	case r.Distance != nil && *r.Distance < 0:
		return fmt.Errorf("negative distance %v", *r.Distance)
	case r.BaseScore < 0 || r.BaseScore > 1:
		return fmt.Errorf("score %v outside [0,1]", r.BaseScore)
	}
	return nil
}
