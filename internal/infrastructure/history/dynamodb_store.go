package history

import (
	"context"
	"fmt"
	"time"

	appErrors "commuteos-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// PutItemAPI is the part of the DynamoDB client DynamoStore needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoItem adds the table keys to a record. pk selects every query for a
// station pair and sk orders them by time.
type dynamoItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	Record
}

// DynamoStore writes records to a DynamoDB table.
type DynamoStore struct {
	client    PutItemAPI
	tableName string
	logger    *zap.Logger
}

// NewDynamoStore creates a store over tableName.
func NewDynamoStore(client PutItemAPI, tableName string, logger *zap.Logger) *DynamoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

// Save writes rec.
func (s *DynamoStore) Save(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:     fmt.Sprintf("ROUTE#%s#%s", rec.Source, rec.Destination),
		SK:     fmt.Sprintf("%s#%s", rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.ID),
		Record: rec,
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal history record")
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to write history record")
	}

	s.logger.Debug("History record written",
		zap.String("table", s.tableName),
		zap.String("id", rec.ID),
	)
	return nil
}
