package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestMemoryCache(clock *fakeClock) *MemoryCache {
	c := NewMemoryCache(100, 1<<20, nil)
	c.now = clock.Now
	return c
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return stored value before expiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := newTestMemoryCache(clock)

		require.NoError(t, c.Set(ctx, "route:A:B", []byte("v"), time.Minute))
		clock.Advance(59 * time.Second)

		value, found, err := c.Get(ctx, "route:A:B")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), value)
	})

	t.Run("Should treat entry as missing once TTL elapsed", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := newTestMemoryCache(clock)

		require.NoError(t, c.Set(ctx, "route:A:B", []byte("v"), time.Minute))
		clock.Advance(time.Minute)

		_, found, err := c.Get(ctx, "route:A:B")
		require.NoError(t, err)
		assert.False(t, found)
		stats := c.Stats()
		assert.Equal(t, 0, stats.Entries)
		assert.Equal(t, int64(1), stats.Expired)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("Should report whether delete removed a live key", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := newTestMemoryCache(clock)
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

		deleted, err := c.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = c.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("Should evict least recently used item when full", func(t *testing.T) {
		c := NewMemoryCache(2, 1<<20, nil)
		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
		_, _, _ = c.Get(ctx, "a")
		require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

		_, foundA, _ := c.Get(ctx, "a")
		_, foundB, _ := c.Get(ctx, "b")
		assert.True(t, foundA)
		assert.False(t, foundB)
		assert.Equal(t, int64(1), c.Stats().Evictions)
	})

	t.Run("Should clear only keys matching pattern", func(t *testing.T) {
		c := NewMemoryCache(10, 1<<20, nil)
		require.NoError(t, c.Set(ctx, "route:A:B", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "route:B:C", []byte("2"), time.Minute))
		require.NoError(t, c.Set(ctx, "other", []byte("3"), time.Minute))

		require.NoError(t, c.Clear(ctx, "route:*"))

		_, found, _ := c.Get(ctx, "route:A:B")
		assert.False(t, found)
		_, found, _ = c.Get(ctx, "other")
		assert.True(t, found)
	})

	t.Run("Should remove expired items during cleanup", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := newTestMemoryCache(clock)
		require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
		require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))

		clock.Advance(2 * time.Second)
		c.sweep()

		stats := c.Stats()
		assert.Equal(t, 1, stats.Entries)
		assert.Equal(t, int64(1), stats.Expired)
		assert.Equal(t, int64(len("long")+1), stats.Bytes)
	})

	t.Run("Should skip values larger than the byte budget", func(t *testing.T) {
		c := NewMemoryCache(10, 8, nil)
		require.NoError(t, c.Set(ctx, "small", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "huge", make([]byte, 64), time.Minute))

		_, found, _ := c.Get(ctx, "huge")
		assert.False(t, found)
		_, found, _ = c.Get(ctx, "small")
		assert.True(t, found)
		assert.Zero(t, c.Stats().Evictions)
	})

	t.Run("Should compute the hit rate", func(t *testing.T) {
		c := NewMemoryCache(10, 1<<20, nil)
		assert.Zero(t, c.Stats().HitRate())

		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		_, _, _ = c.Get(ctx, "k")
		_, _, _ = c.Get(ctx, "missing")

		assert.Equal(t, 0.5, c.Stats().HitRate())
	})
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		str     string
		pattern string
		want    bool
	}{
		{"route:A:B", "*", true},
		{"route:A:B", "route:*", true},
		{"stats", "route:*", false},
		{"route:A:B", "*:B", true},
		{"route:A:B", "route:A:B", true},
		{"route:A:C", "route:A:B", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.str, tt.pattern), "%s ~ %s", tt.str, tt.pattern)
	}
}
