package cache

import (
	"context"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behaviour every Backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("Should miss on unknown key", func(t *testing.T) {
		_, found, err := b.Get(ctx, "route:X:Y")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should round trip a value", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "route:A:B", []byte(`{"path":["A","B"]}`), time.Hour))

		value, found, err := b.Get(ctx, "route:A:B")
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"path":["A","B"]}`, string(value))
	})

	t.Run("Should report delete of existing and missing keys", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "route:D:E", []byte("x"), time.Hour))

		deleted, err := b.Delete(ctx, "route:D:E")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = b.Delete(ctx, "route:D:E")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("Should clear by prefix", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "route:A:C", []byte("1"), time.Hour))
		require.NoError(t, b.Set(ctx, "route:C:B", []byte("2"), time.Hour))
		require.NoError(t, b.Set(ctx, "meta:version", []byte("3"), time.Hour))

		require.NoError(t, b.Clear(ctx, "route:*"))

		for _, key := range []string{"route:A:B", "route:A:C", "route:C:B"} {
			_, found, err := b.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found, key)
		}
		_, found, err := b.Get(ctx, "meta:version")
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, nil)
	t.Cleanup(func() { _ = c.Close() })

	exerciseBackend(t, c)

	t.Run("Should expire entries after TTL", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "route:T:U", []byte("v"), 10*time.Second))

		mr.FastForward(11 * time.Second)

		_, found, err := c.Get(ctx, "route:T:U")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should surface connection errors", func(t *testing.T) {
		broken := NewRedisCacheWithClient(redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
			MaxRetries:  -1,
		}), nil)
		defer broken.Close()

		_, _, err := broken.Get(context.Background(), "route:A:B")
		assert.Error(t, err)
	})
}

func TestNewRedisCache(t *testing.T) {
	t.Run("Should connect and ping", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port := splitAddr(t, mr.Addr())

		c, err := NewRedisCache(context.Background(), RedisConfig{Host: host, Port: port, PoolSize: 2}, nil)
		require.NoError(t, err)
		defer c.Close()
	})

	t.Run("Should fail when server unreachable", func(t *testing.T) {
		_, err := NewRedisCache(context.Background(), RedisConfig{Host: "127.0.0.1", Port: 1}, nil)
		assert.Error(t, err)
	})
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestBadgerCache(t *testing.T) {
	c, err := NewBadgerCache(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	exerciseBackend(t, c)

	t.Run("Should clear by suffix", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "route:A:B", []byte("1"), time.Hour))
		require.NoError(t, c.Set(ctx, "route:A:C", []byte("2"), time.Hour))

		require.NoError(t, c.Clear(ctx, "*:B"))

		_, found, _ := c.Get(ctx, "route:A:B")
		assert.False(t, found)
		_, found, _ = c.Get(ctx, "route:A:C")
		assert.True(t, found)
	})

	t.Run("Should drop everything", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "route:A:B", []byte("1"), time.Hour))

		require.NoError(t, c.Clear(ctx, "*"))

		_, found, _ := c.Get(ctx, "route:A:B")
		assert.False(t, found)
	})
}

// fakeDynamo is an in-memory DynamoAPI keyed by the "pk" attribute.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	// pageSize forces Scan pagination when > 0
	pageSize int
	err      error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(item map[string]types.AttributeValue) string {
	if s, ok := item["pk"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.items[pkOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk := pkOf(in.Key)
	old := f.items[pk]
	delete(f.items, pk)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	prefix := ""
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			prefix = s.Value
		}
	}
	start := ""
	if in.ExclusiveStartKey != nil {
		start = pkOf(in.ExclusiveStartKey)
	}

	var keys []string
	for pk := range f.items {
		if strings.HasPrefix(pk, prefix) && pk > start {
			keys = append(keys, pk)
		}
	}
	slices.Sort(keys)

	out := &dynamodb.ScanOutput{}
	for _, pk := range keys {
		if f.pageSize > 0 && len(out.Items) == f.pageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pkOf(out.Items[len(out.Items)-1])}}
			break
		}
		out.Items = append(out.Items, map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}})
	}
	return out, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, requests := range in.RequestItems {
		for _, r := range requests {
			if r.DeleteRequest != nil {
				delete(f.items, pkOf(r.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func TestDynamoCache(t *testing.T) {
	fake := newFakeDynamo()
	c := NewDynamoCache(fake, "commuteos-route-cache", nil)

	exerciseBackend(t, c)

	t.Run("Should hide entries past their deadline", func(t *testing.T) {
		ctx := context.Background()
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := NewDynamoCache(newFakeDynamo(), "t", nil)
		c.now = clock.Now

		require.NoError(t, c.Set(ctx, "route:A:B", []byte("v"), 500*time.Millisecond))
		clock.Advance(499 * time.Millisecond)
		_, found, err := c.Get(ctx, "route:A:B")
		require.NoError(t, err)
		assert.True(t, found)

		clock.Advance(time.Millisecond)
		_, found, err = c.Get(ctx, "route:A:B")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should paginate scans and batch deletes", func(t *testing.T) {
		ctx := context.Background()
		fake := newFakeDynamo()
		fake.pageSize = 7
		c := NewDynamoCache(fake, "t", nil)

		for i := 0; i < 60; i++ {
			require.NoError(t, c.Set(ctx, Key("S", string(rune('a'+i%26))+strings.Repeat("x", i/26)), []byte("v"), time.Hour))
		}
		require.NoError(t, c.Set(ctx, "keep", []byte("v"), time.Hour))

		require.NoError(t, c.Clear(ctx, "route:*"))

		assert.Len(t, fake.items, 1)
		_, ok := fake.items["keep"]
		assert.True(t, ok)
	})

	t.Run("Should wrap client errors", func(t *testing.T) {
		fake := newFakeDynamo()
		fake.err = assert.AnError
		c := NewDynamoCache(fake, "t", nil)

		_, _, err := c.Get(context.Background(), "route:A:B")
		assert.ErrorIs(t, err, assert.AnError)
	})
}
