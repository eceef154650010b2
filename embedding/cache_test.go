package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := DefaultCacheConfig()
	return NewRedisCache(rdb, cfg, zap.NewNop()), mr
}

func TestCacheKey_Deterministic(t *testing.T) {
	assert.Equal(t, CacheKey("same text"), CacheKey("same text"))
	assert.NotEqual(t, CacheKey("one"), CacheKey("two"))
	assert.Len(t, CacheKey("x"), 64)
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	defer c.Close()
	ctx := context.Background()

	entry := &CacheEntry{Embedding: []float64{0.1, 0.2}, Timestamp: time.Now(), Model: "test-model"}
	c.Set(ctx, "k1", entry)

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, entry.Embedding, got.Embedding)
	assert.Equal(t, "test-model", got.Model)
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)
	defer c.Close()

	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := DefaultCacheConfig()
	cfg.TTL = time.Minute
	c := NewRedisCache(rdb, cfg, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", &CacheEntry{Embedding: []float64{1}, Timestamp: time.Now().Add(-2 * time.Minute), Model: "m"})
	mr.FastForward(2 * time.Minute)

	// The local front rejects the stale entry and Redis has expired it.
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_RedisDownDegradesToLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(rdb, DefaultCacheConfig(), zap.NewNop())
	ctx := context.Background()

	mr.Close()

	// Writes and reads must not raise even with the store down.
	c.Set(ctx, "k", &CacheEntry{Embedding: []float64{1}, Timestamp: time.Now(), Model: "m"})
	got, ok := c.Get(ctx, "k")
	require.True(t, ok, "local front still serves the entry")
	assert.Equal(t, []float64{1}, got.Embedding)

	_, ok = c.Get(ctx, "never-set")
	assert.False(t, ok)
}

func TestRedisCache_NilClientLocalOnly(t *testing.T) {
	c := NewRedisCache(nil, DefaultCacheConfig(), zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, "k", &CacheEntry{Embedding: []float64{3}, Timestamp: time.Now(), Model: "m"})
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float64{3}, got.Embedding)
	assert.NoError(t, c.Close())
}

func TestLRUFront_Eviction(t *testing.T) {
	l := newLRUFront(2)
	now := time.Now()

	l.put("a", &CacheEntry{Timestamp: now})
	l.put("b", &CacheEntry{Timestamp: now})
	l.get("a") // refresh a
	l.put("c", &CacheEntry{Timestamp: now})

	_, okA := l.get("a")
	_, okB := l.get("b")
	_, okC := l.get("c")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry evicted")
	assert.True(t, okC)
}
