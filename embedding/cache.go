package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheEntry is one cached embedding, keyed by the content hash of the
// exact text submitted for embedding (metadata prefix included).
type CacheEntry struct {
	Embedding []float64 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
}

// Cache stores embeddings by content hash. Implementations must never
// fail loudly: a store failure degrades to "always recompute".
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool)
	Set(ctx context.Context, key string, entry *CacheEntry)
	Close() error
}

// CacheKey derives the cache key for a text: the SHA-256 hex digest of
// the exact bytes submitted for embedding.
func CacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CacheConfig configures the Redis-backed cache.
type CacheConfig struct {
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	LocalMaxSize int           `json:"local_max_size" yaml:"local_max_size"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultCacheConfig returns the default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:          24 * time.Hour,
		LocalMaxSize: 2048,
		KeyPrefix:    "researchflow:embed:",
	}
}

// RedisCache is a two-level embedding cache: a small in-process LRU
// front over a Redis backing store. Redis enforces the TTL; the LRU
// front enforces its own size bound and re-checks entry age so an
// expired-but-still-local hit is recomputed rather than served forever.
type RedisCache struct {
	rdb    *redis.Client
	cfg    CacheConfig
	local  *lruFront
	logger *zap.Logger
}

// NewRedisCache creates the cache. rdb may be nil, in which case only
// the local LRU front is used.
func NewRedisCache(rdb *redis.Client, cfg CacheConfig, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.LocalMaxSize <= 0 {
		cfg.LocalMaxSize = 2048
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "researchflow:embed:"
	}
	return &RedisCache{
		rdb:    rdb,
		cfg:    cfg,
		local:  newLRUFront(cfg.LocalMaxSize),
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

// Get returns the cached entry, or (nil, false) on miss, expiry, or any
// store failure.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	if entry, ok := c.local.get(key); ok {
		if time.Since(entry.Timestamp) < c.cfg.TTL {
			return entry, true
		}
		c.local.remove(key)
	}

	if c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, c.cfg.KeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed, recomputing", zap.Error(err))
		}
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache entry corrupt, recomputing", zap.Error(err))
		return nil, false
	}
	c.local.put(key, &entry)
	return &entry, true
}

// Set stores an entry. Failures are logged and swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) {
	c.local.put(key, entry)

	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache entry marshal failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.cfg.KeyPrefix+key, raw, c.cfg.TTL).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// lruFront is a size-bounded in-process LRU map. Access is safe under
// concurrent readers and writers; there is no cross-key coordination.
type lruFront struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	items   map[string]*list.Element
}

type lruItem struct {
	key   string
	entry *CacheEntry
}

func newLRUFront(maxSize int) *lruFront {
	return &lruFront{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (l *lruFront) get(key string) (*CacheEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

func (l *lruFront) put(key string, entry *CacheEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem).entry = entry
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem{key: key, entry: entry})
	for l.order.Len() > l.maxSize {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruItem).key)
	}
}

func (l *lruFront) remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		l.order.Remove(el)
		delete(l.items, key)
	}
}
