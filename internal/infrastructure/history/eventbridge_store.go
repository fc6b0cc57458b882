package history

import (
	"context"
	"encoding/json"
	"fmt"

	appErrors "commuteos-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// Event metadata for published history records.
const (
	EventSource       = "commuteos.gateway"
	EventRouteQueried = "RouteQueried"
)

// PutEventsAPI is the part of the EventBridge client EventBridgeStore needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeStore publishes each record as a RouteQueried event so
// downstream consumers own persistence.
type EventBridgeStore struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
}

// NewEventBridgeStore creates a store publishing to eventBusName.
func NewEventBridgeStore(client PutEventsAPI, eventBusName string, logger *zap.Logger) *EventBridgeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridgeStore{client: client, eventBusName: eventBusName, logger: logger}
}

// Save publishes rec.
func (s *EventBridgeStore) Save(ctx context.Context, rec Record) error {
	detail, err := json.Marshal(rec)
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal history event")
	}

	result, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(s.eventBusName),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(EventRouteQueried),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(rec.Timestamp),
			Resources:    []string{fmt.Sprintf("commuteos:route:%s:%s", rec.Source, rec.Destination)},
		}},
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to publish history event")
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				s.logger.Error("Failed to publish event",
					zap.String("eventType", EventRouteQueried),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return appErrors.NewUnavailable(fmt.Sprintf("%d events failed to publish", result.FailedEntryCount), nil)
	}

	s.logger.Debug("Event published to EventBridge",
		zap.String("eventType", EventRouteQueried),
		zap.String("eventBus", s.eventBusName),
	)
	return nil
}
