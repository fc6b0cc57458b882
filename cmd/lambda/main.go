// Command lambda serves the API gateway from AWS Lambda behind an HTTP API.
package main

import (
	"context"
	"log"
	"time"

	"commuteos-backend/internal/config"
	"commuteos-backend/internal/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"
)

var (
	// chiLambda wraps the gateway router for API Gateway v2 events
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	// coldStart is true until the first invocation completes
	coldStart     = true
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The file watcher cannot outlive a frozen execution environment.
	cfg.Graph.Watch = false

	container, err = di.NewGatewayContainer(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	zap.ReplaceGlobals(container.Logger)
	chiLambda = chiadapter.NewV2(container.GatewayRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("routing_mode", cfg.Routing.Mode),
	)
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	start := time.Now()

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	container.Logger.Info("Lambda request handled",
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("cold_start", coldStart),
	)
	coldStart = false

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
