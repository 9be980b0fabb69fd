package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Total int64 `json:"total"`
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryCache_SetGetExpire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyJourneyMetrics, snapshot{Total: 7}, 300*time.Second))

	var got snapshot
	ok, err := c.Get(ctx, KeyJourneyMetrics, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 7, got.Total)

	clock.Advance(299 * time.Second)
	ok, err = c.Get(ctx, KeyJourneyMetrics, &got)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, err = c.Get(ctx, KeyJourneyMetrics, &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, KeyJourneyMetrics, snapshot{Total: 1}, time.Minute))
	require.NoError(t, c.Set(ctx, KeyConversionMetrics, snapshot{Total: 2}, time.Minute))

	require.NoError(t, c.Delete(ctx, KeyJourneyMetrics, KeyConversionMetrics, "absent"))

	var got snapshot
	ok, err := c.Get(ctx, KeyConversionMetrics, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
