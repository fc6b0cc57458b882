package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErrors "commuteos-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoCache.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// dynamoRecord is one cache entry. ExpiresAt is in epoch seconds and is the
// table's TTL attribute; ExpiresAtMs carries the exact deadline because
// DynamoDB evicts expired items lazily.
type dynamoRecord struct {
	PK          string `dynamodbav:"pk"`
	Payload     []byte `dynamodbav:"payload"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	ExpiresAtMs int64  `dynamodbav:"expires_at_ms"`
}

// batchWriteLimit is the DynamoDB maximum for BatchWriteItem.
const batchWriteLimit = 25

// maxUnprocessedRetries bounds resubmission of throttled batch deletes.
const maxUnprocessedRetries = 3

// DynamoCache stores entries in a DynamoDB table keyed by "pk".
type DynamoCache struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
	logger    *zap.Logger
}

// NewDynamoCache creates a cache over tableName.
func NewDynamoCache(client DynamoAPI, tableName string, logger *zap.Logger) *DynamoCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoCache{client: client, tableName: tableName, now: time.Now, logger: logger}
}

func (c *DynamoCache) key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: k}}
}

// Get retrieves a value from the cache
func (c *DynamoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, c.wrap(err, "GetItem")
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, false, appErrors.Wrap(err, "unmarshal cache record")
	}
	if !c.live(rec) {
		return nil, false, nil
	}
	return rec.Payload, true, nil
}

// Set stores a value with the given TTL
func (c *DynamoCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	deadline := c.now().Add(ttl)
	item, err := attributevalue.MarshalMap(dynamoRecord{
		PK:          key,
		Payload:     value,
		ExpiresAt:   deadline.Unix() + 1,
		ExpiresAtMs: deadline.UnixMilli(),
	})
	if err != nil {
		return appErrors.Wrap(err, "marshal cache record")
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return c.wrap(err, "PutItem")
	}
	return nil
}

// Delete removes key and reports whether a live entry existed
func (c *DynamoCache) Delete(ctx context.Context, key string) (bool, error) {
	out, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.tableName),
		Key:          c.key(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, c.wrap(err, "DeleteItem")
	}
	if len(out.Attributes) == 0 {
		return false, nil
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return true, nil
	}
	return c.live(rec), nil
}

// Clear deletes every key matching pattern. Wildcard prefixes are resolved
// with a begins_with scan filter followed by batched deletes.
func (c *DynamoCache) Clear(ctx context.Context, pattern string) error {
	prefix, wildcard := prefixOf(pattern)
	if !wildcard {
		_, err := c.Delete(ctx, pattern)
		return err
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(c.tableName),
	}
	projection := expression.NamesList(expression.Name("pk"))
	builder := expression.NewBuilder().WithProjection(projection)
	if prefix != "" {
		builder = builder.WithFilter(expression.Name("pk").BeginsWith(prefix))
	}
	expr, err := builder.Build()
	if err != nil {
		return appErrors.Wrap(err, "failed to build expression")
	}
	input.ProjectionExpression = expr.Projection()
	input.ExpressionAttributeNames = expr.Names()
	if prefix != "" {
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeValues = expr.Values()
	}

	var keys []map[string]types.AttributeValue
	for {
		out, err := c.client.Scan(ctx, input)
		if err != nil {
			return c.wrap(err, "Scan")
		}
		for _, item := range out.Items {
			if pk, ok := item["pk"]; ok {
				keys = append(keys, map[string]types.AttributeValue{"pk": pk})
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	for start := 0; start < len(keys); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(keys))
		if err := c.deleteBatch(ctx, keys[start:end]); err != nil {
			return err
		}
	}

	c.logger.Info("Cleared cache entries", zap.String("pattern", pattern), zap.Int("count", len(keys)))
	return nil
}

func (c *DynamoCache) deleteBatch(ctx context.Context, keys []map[string]types.AttributeValue) error {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}

	pending := map[string][]types.WriteRequest{c.tableName: requests}
	for attempt := 0; len(pending[c.tableName]) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return appErrors.NewUnavailable(
				fmt.Sprintf("%d cache deletes left unprocessed", len(pending[c.tableName])), nil)
		}
		out, err := c.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return c.wrap(err, "BatchWriteItem")
		}
		pending = out.UnprocessedItems
	}
	return nil
}

func (c *DynamoCache) live(rec dynamoRecord) bool {
	if rec.ExpiresAtMs > 0 {
		return c.now().UnixMilli() < rec.ExpiresAtMs
	}
	return c.now().Unix() < rec.ExpiresAt
}

// wrap tags DynamoDB failures with the service error code for the logs.
func (c *DynamoCache) wrap(err error, op string) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		c.logger.Debug("DynamoDB cache call failed",
			zap.String("operation", op),
			zap.String("code", ae.ErrorCode()),
			zap.String("fault", ae.ErrorFault().String()),
		)
		if ae.ErrorCode() == "ProvisionedThroughputExceededException" || ae.ErrorCode() == "ThrottlingException" {
			return appErrors.NewUnavailable("DynamoDB "+op+" throttled", err)
		}
	}
	return appErrors.Wrap(err, "DynamoDB "+op+" failed")
}
