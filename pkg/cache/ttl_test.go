package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/cache"
)

func TestTTLCache_GetSet(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[string, int](10, time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }
	c := cache.NewTTLCache[string, string](10, 300*time.Second, cache.WithClock(func() time.Time { return clock() }))

	c.Set("k", "v")

	now = now.Add(299 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry within TTL must be served")

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry older than TTL must never be served")
	assert.Zero(t, c.Len(), "expired entry is reaped on access")
}

func TestTTLCache_SetRefreshesTTL(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := cache.NewTTLCache[string, int](10, time.Minute, cache.WithClock(func() time.Time { return now }))

	c.Set("k", 1)
	now = now.Add(50 * time.Second)
	c.Set("k", 2)
	now = now.Add(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[int, int](2, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)

	// Touch 1 so 2 becomes the eviction candidate.
	_, ok := c.Get(1)
	require.True(t, ok)

	c.Set(3, 3)

	_, ok = c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestTTLCache_Delete(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[string, int](10, time.Minute)
	c.Set("k", 1)

	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCache_InvalidConfigPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { cache.NewTTLCache[string, int](0, time.Minute) })
	assert.Panics(t, func() { cache.NewTTLCache[string, int](10, 0) })
}
