package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultFeedKeyPrefix namespaces calendar feed keys within Redis.
// Cache keys start with the scope ("all" or a deal UUID), so per-deal
// invalidation can match "prefix + scope + :*".
const defaultFeedKeyPrefix = "calendar:feed:"

// RedisFeedCache implements calendar.FeedCache using Redis.
// This is suitable for distributed deployments where multiple instances
// need to share the assembled feeds.
type RedisFeedCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisFeedCache creates a new Redis-backed feed cache
func NewRedisFeedCache(cfg RedisConfig) (*RedisFeedCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisFeedCache{
		client:    client,
		keyPrefix: defaultFeedKeyPrefix,
	}, nil
}

// NewRedisFeedCacheWithClient creates a cache with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisFeedCacheWithClient(client *redis.Client, keyPrefix string) *RedisFeedCache {
	if keyPrefix == "" {
		keyPrefix = defaultFeedKeyPrefix
	}
	return &RedisFeedCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached feed for the key, or nil on a miss
func (c *RedisFeedCache) Get(ctx context.Context, key string) (*calendar.Feed, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached feed: %w", err)
	}

	var feed calendar.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		// A corrupt entry is treated as a miss; the caller rebuilds and
		// overwrites it on the next Set.
		return nil, nil
	}
	return &feed, nil
}

// Set stores the feed under the key for the given TTL
func (c *RedisFeedCache) Set(ctx context.Context, key string, feed *calendar.Feed, ttl time.Duration) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache feed: %w", err)
	}
	return nil
}

// InvalidateDeal drops every cached feed whose scope includes the deal.
// All-deals feeds ("all:" scope) may contain the deal's events, so they
// are dropped as well.
func (c *RedisFeedCache) InvalidateDeal(ctx context.Context, dealID uuid.UUID) error {
	if err := c.deleteByPattern(ctx, c.keyPrefix+dealID.String()+":*"); err != nil {
		return err
	}
	return c.deleteByPattern(ctx, c.keyPrefix+"all:*")
}

// InvalidateAll drops every cached feed
func (c *RedisFeedCache) InvalidateAll(ctx context.Context) error {
	return c.deleteByPattern(ctx, c.keyPrefix+"*")
}

// deleteByPattern scans for keys matching the pattern and deletes them in
// batches. SCAN is used instead of KEYS to avoid blocking Redis.
func (c *RedisFeedCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate cached feeds: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached feeds: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cached feeds: %w", err)
		}
	}
	return nil
}

// Close closes the Redis client
func (c *RedisFeedCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisFeedCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisFeedCache implements calendar.FeedCache
var _ calendar.FeedCache = (*RedisFeedCache)(nil)
