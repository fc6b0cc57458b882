package di

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"commuteos-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsEventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
)

// AWSClients loads the SDK configuration on first use, so deployments
// without any AWS backend never touch credentials.
type AWSClients struct {
	cfg *config.Config

	once   sync.Once
	awsCfg aws.Config
	err    error

	dynamoOnce  sync.Once
	dynamo      *awsDynamodb.Client
	eventsOnce  sync.Once
	eventBridge *awsEventbridge.Client
}

func provideAWSClients(cfg *config.Config) *AWSClients {
	return &AWSClients{cfg: cfg}
}

// Config returns the shared SDK configuration.
func (a *AWSClients) Config(ctx context.Context) (aws.Config, error) {
	a.once.Do(func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx, awsConfig.WithRegion(a.cfg.AWS.Region))
		if err != nil {
			a.err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		if a.cfg.AWS.Endpoint != "" {
			awsCfg.BaseEndpoint = aws.String(a.cfg.AWS.Endpoint)
		}
		a.awsCfg = awsCfg
	})
	return a.awsCfg, a.err
}

// DynamoDB returns the DynamoDB client.
func (a *AWSClients) DynamoDB(ctx context.Context) (*awsDynamodb.Client, error) {
	awsCfg, err := a.Config(ctx)
	if err != nil {
		return nil, err
	}
	a.dynamoOnce.Do(func() {
		timeout := 15 * time.Second
		if a.cfg.IsDevelopment() {
			timeout = 30 * time.Second
		}
		a.dynamo = awsDynamodb.NewFromConfig(awsCfg, func(o *awsDynamodb.Options) {
			o.HTTPClient = &http.Client{Timeout: timeout}
		})
	})
	return a.dynamo, nil
}

// EventBridge returns the EventBridge client.
func (a *AWSClients) EventBridge(ctx context.Context) (*awsEventbridge.Client, error) {
	awsCfg, err := a.Config(ctx)
	if err != nil {
		return nil, err
	}
	a.eventsOnce.Do(func() {
		a.eventBridge = awsEventbridge.NewFromConfig(awsCfg, func(o *awsEventbridge.Options) {
			o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
		})
	})
	return a.eventBridge, nil
}
