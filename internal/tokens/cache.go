package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheClient defines the subset of Redis commands the cached store needs.
type CacheClient interface {
	// Get returns the value or an error if the key is not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// RedisClient wraps go-redis to satisfy CacheClient.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient connects to Redis from a URL and fails fast if unreachable.
func NewRedisClient(redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{rdb: rdb}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, bytes, ttl).Err()
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// CachedStore adds read-aside caching to any Store.
type CachedStore struct {
	realStore Store
	cache     CacheClient
	ttl       time.Duration
}

// NewCachedStore creates the caching decorator.
func NewCachedStore(realStore Store, cache CacheClient, ttl time.Duration) *CachedStore {
	return &CachedStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// GetTokens serves from the cache when it can, falling back to the real store.
func (s *CachedStore) GetTokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	key := s.cacheKey(userID)

	var cached []DeviceToken
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.GetTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction. If Redis is down we
	// just keep serving from the database.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// Register writes to the source of truth and invalidates the cache.
func (s *CachedStore) Register(ctx context.Context, userID string, token DeviceToken) error {
	if err := s.realStore.Register(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// Unregister writes to the source of truth and invalidates the cache.
// The cache must be cleared even though the DB write succeeded, so that
// an unregistered device stops receiving notifications immediately.
func (s *CachedStore) Unregister(ctx context.Context, userID, token string) error {
	if err := s.realStore.Unregister(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedStore) invalidate(ctx context.Context, userID string) error {
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedStore) cacheKey(userID string) string {
	return fmt.Sprintf("pushgate:tokens:%s", userID)
}
