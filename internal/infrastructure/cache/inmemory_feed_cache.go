package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/google/uuid"
)

// feedEntry represents a stored feed with expiration
type feedEntry struct {
	feed      *calendar.Feed
	expiresAt time.Time
}

// InMemoryFeedCache implements calendar.FeedCache using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryFeedCache struct {
	mu        sync.RWMutex
	entries   map[string]feedEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryFeedCache creates a new in-memory feed cache
// It starts a background goroutine to clean up expired entries
func NewInMemoryFeedCache() *InMemoryFeedCache {
	cache := &InMemoryFeedCache{
		entries:  make(map[string]feedEntry),
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

// Get returns the cached feed for the key, or nil on a miss
func (c *InMemoryFeedCache) Get(ctx context.Context, key string) (*calendar.Feed, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, nil
	}
	if time.Now().After(e.expiresAt) {
		return nil, nil // Expired, treat as a miss
	}
	return e.feed, nil
}

// Set stores the feed under the key for the given TTL
func (c *InMemoryFeedCache) Set(ctx context.Context, key string, feed *calendar.Feed, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = feedEntry{
		feed:      feed,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// InvalidateDeal drops every cached feed whose scope includes the deal.
// Keys start with the scope segment, so this matches the deal's own keys
// plus the all-deals keys.
func (c *InMemoryFeedCache) InvalidateDeal(ctx context.Context, dealID uuid.UUID) error {
	dealPrefix := dealID.String() + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, dealPrefix) || strings.HasPrefix(key, "all:") {
			delete(c.entries, key)
		}
	}
	return nil
}

// InvalidateAll drops every cached feed
func (c *InMemoryFeedCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]feedEntry)
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (c *InMemoryFeedCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *InMemoryFeedCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries from the cache
func (c *InMemoryFeedCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *InMemoryFeedCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure InMemoryFeedCache implements calendar.FeedCache
var _ calendar.FeedCache = (*InMemoryFeedCache)(nil)
