package cache

import (
	"fmt"

	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/dealflow/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FeedCacheFactory creates calendar feed caches based on configuration
type FeedCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FeedCacheFactoryOption is a functional option for configuring the factory
type FeedCacheFactoryOption func(*FeedCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FeedCacheFactoryOption {
	return func(f *FeedCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache
// when Redis is unavailable. Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FeedCacheFactoryOption {
	return func(f *FeedCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFeedCacheFactory creates a new factory
func NewFeedCacheFactory(cfg config.RedisConfig, opts ...FeedCacheFactoryOption) *FeedCacheFactory {
	f := &FeedCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-backed feed cache
func (f *FeedCacheFactory) CreateRedisCache() (calendar.FeedCache, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	cache, err := NewRedisFeedCache(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis feed cache: %w", err)
	}

	return cache, nil
}

// CreateInMemoryCache creates an in-memory feed cache
// This is suitable for single-instance deployments and testing
// WARNING: in-memory caches do not share invalidations across process
// instances, which can serve stale feeds in distributed deployments
func (f *FeedCacheFactory) CreateInMemoryCache() calendar.FeedCache {
	return NewInMemoryFeedCache()
}

// CreateCache creates a feed cache based on whether Redis is available.
// It tries Redis first and falls back to in-memory if Redis is not
// reachable and the fallback is allowed.
func (f *FeedCacheFactory) CreateCache() (calendar.FeedCache, error) {
	cache, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis calendar feed cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for feed cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory feed cache. "+
		"This may serve stale feeds in distributed deployments.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
