package docs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/models"
)

const cacheKeyPrefix = "docs:"

// ErrCacheMiss signals that a key is absent from the cache.
var ErrCacheMiss = errors.New("docs: cache miss")

// Cache is the key-value contract CachedLookup needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisCache implements Cache on a go-redis client.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// CachedLookup is a read-through cache in front of another Lookup. Cache
// errors never fail a lookup; they are logged and the inner lookup answers.
type CachedLookup struct {
	inner  Lookup
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ Lookup = (*CachedLookup)(nil)

func NewCachedLookup(inner Lookup, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedLookup) ListDocuments(ctx context.Context, chatID string) ([]models.Document, error) {
	key := cacheKeyPrefix + chatID

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		cached, decodeErr := decodeDocuments(raw)
		if decodeErr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding malformed cache entry", zap.String("key", key), zap.Error(decodeErr))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("document cache read failed", zap.String("key", key), zap.Error(err))
	}

	docs, err := c.inner.ListDocuments(ctx, chatID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(docs)
	if err == nil {
		err = c.cache.Set(ctx, key, string(payload), c.ttl)
	}
	if err != nil {
		c.logger.Warn("document cache write failed", zap.String("key", key), zap.Error(err))
	}

	return docs, nil
}

func decodeDocuments(raw string) ([]models.Document, error) {
	var list []models.Document
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Document{}
	}
	return list, nil
}

// Invalidate drops the cached listing of chatID.
func (c *CachedLookup) Invalidate(ctx context.Context, chatID string) error {
	return c.cache.Del(ctx, cacheKeyPrefix+chatID)
}
