package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeedCache caches assembled feeds per scope. Implementations must treat
// the cache as strictly optional: a failing cache degrades to a direct
// rebuild, it never fails the read.
type FeedCache interface {
	// Get returns the cached feed for the key, or nil on a miss
	Get(ctx context.Context, key string) (*Feed, error)

	// Set stores the feed under the key for the given TTL
	Set(ctx context.Context, key string, feed *Feed, ttl time.Duration) error

	// InvalidateDeal drops every cached feed whose scope includes the
	// deal, including the all-deals feeds
	InvalidateDeal(ctx context.Context, dealID uuid.UUID) error

	// InvalidateAll drops every cached feed
	InvalidateAll(ctx context.Context) error
}
