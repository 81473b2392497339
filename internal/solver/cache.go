package solver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	redis "github.com/redis/go-redis/v9"
)

// Cache stores raw solver output keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Close() error
}

// CacheKey hashes the parameter line and the instance text.
func CacheKey(params map[string]string, instance string) string {
	h := sha256.New()
	h.Write([]byte(ParamLine(params)))
	h.Write([]byte{'\n'})
	h.Write([]byte(instance))
	return hex.EncodeToString(h.Sum(nil))
}

// RedisCache keeps solver output in Redis with a TTL.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url and checks it responds.
func NewRedisCache(url, prefix string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisCacheFromClient(rdb, prefix, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string) error {
	return c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// MemoryCache is an in-process cache bounded by entry count, evicting the
// least recently used entry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryCache creates a cache; ttl <= 0 disables expiry and
// maxEntries <= 0 disables the bound.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value string) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of unexpired entries.
func (c *MemoryCache) Len() int {
	return len(c.lru.Values())
}

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
