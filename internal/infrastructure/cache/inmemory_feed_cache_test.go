package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dealflow/backend/internal/domain/calendar"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeed(total int) *calendar.Feed {
	return &calendar.Feed{
		Events: make([]calendar.CalendarEvent, 0),
		Total:  total,
	}
}

func TestInMemoryFeedCache_GetMiss(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	feed, err := cache.Get(context.Background(), "all:kinds=:statuses=:from=:to=:group=false")
	require.NoError(t, err)
	assert.Nil(t, feed)
}

func TestInMemoryFeedCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	key := "all:kinds=:statuses=:from=:to=:group=false"

	require.NoError(t, cache.Set(ctx, key, testFeed(3), time.Minute))

	feed, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, 3, feed.Total)
}

func TestInMemoryFeedCache_ExpiredEntryIsAMiss(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "all:k", testFeed(1), 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	feed, err := cache.Get(ctx, "all:k")
	require.NoError(t, err)
	assert.Nil(t, feed)
}

func TestInMemoryFeedCache_InvalidateDeal(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	dealA := uuid.New()
	dealB := uuid.New()

	require.NoError(t, cache.Set(ctx, dealA.String()+":kinds=", testFeed(1), time.Minute))
	require.NoError(t, cache.Set(ctx, dealB.String()+":kinds=", testFeed(2), time.Minute))
	require.NoError(t, cache.Set(ctx, "all:kinds=", testFeed(3), time.Minute))

	require.NoError(t, cache.InvalidateDeal(ctx, dealA))

	// The deal's own feeds and the all-deals feeds are gone
	feed, err := cache.Get(ctx, dealA.String()+":kinds=")
	require.NoError(t, err)
	assert.Nil(t, feed)

	feed, err = cache.Get(ctx, "all:kinds=")
	require.NoError(t, err)
	assert.Nil(t, feed)

	// The other deal's feed survives
	feed, err = cache.Get(ctx, dealB.String()+":kinds=")
	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, 2, feed.Total)
}

func TestInMemoryFeedCache_InvalidateAll(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "all:a", testFeed(1), time.Minute))
	require.NoError(t, cache.Set(ctx, uuid.NewString()+":b", testFeed(2), time.Minute))

	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Equal(t, 0, cache.Size())
}

func TestInMemoryFeedCache_CleanupRemovesExpired(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "all:stale", testFeed(1), 1*time.Millisecond))
	require.NoError(t, cache.Set(ctx, "all:fresh", testFeed(2), time.Hour))

	time.Sleep(5 * time.Millisecond)
	cache.cleanup()

	assert.Equal(t, 1, cache.Size())
}

func TestInMemoryFeedCache_ConcurrentAccess(t *testing.T) {
	cache := NewInMemoryFeedCache()
	defer cache.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("all:key-%d", n)
			_ = cache.Set(ctx, key, testFeed(n), time.Minute)
		}(i)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("all:key-%d", n)
			_, _ = cache.Get(ctx, key)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 50, cache.Size())
}

func TestInMemoryFeedCache_CloseIsIdempotent(t *testing.T) {
	cache := NewInMemoryFeedCache()

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
}
