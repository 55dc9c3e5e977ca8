package extract

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// Cache memoizes extraction results keyed by the exact input. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, values []string)
}

const redisCacheTTL = 24 * time.Hour

type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisCache stores results in redis with a bounded TTL. Cache errors are
// swallowed: a broken cache degrades to a miss, never a failure.
func NewRedisCache(log *logger.Logger, rdb *goredis.Client) Cache {
	return &redisCache{log: log, rdb: rdb, ttl: redisCacheTTL}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]string, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Debug("Concept cache read failed", "error", err)
		}
		return nil, false
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		c.log.Debug("Concept cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return values, true
}

func (c *redisCache) Set(ctx context.Context, key string, values []string) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("Concept cache write failed", "error", err)
	}
}

type memoryCache struct {
	mu    sync.RWMutex
	items map[string][]string
}

// NewMemoryCache is the in-process fallback used when redis is not configured.
func NewMemoryCache() Cache {
	return &memoryCache{items: make(map[string][]string)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values, ok := c.items[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, true
}

func (c *memoryCache) Set(ctx context.Context, key string, values []string) {
	stored := make([]string, len(values))
	copy(stored, values)
	c.mu.Lock()
	c.items[key] = stored
	c.mu.Unlock()
}
