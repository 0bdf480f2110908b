package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx, "l1", "2026-03-01", "2026-04-01")
	assert.False(t, ok)

	c.Set(ctx, "l1", "2026-03-01", "2026-04-01", []string{"2026-03-05"})
	dates, ok := c.Get(ctx, "l1", "2026-03-01", "2026-04-01")
	assert.True(t, ok)
	assert.Equal(t, []string{"2026-03-05"}, dates)

	_, ok = c.Get(ctx, "l1", "2026-03-01", "2026-05-01")
	assert.False(t, ok, "windows are cached separately")

	dates[0] = "mutated"
	again, _ := c.Get(ctx, "l1", "2026-03-01", "2026-04-01")
	assert.Equal(t, "2026-03-05", again[0])

	c.Invalidate(ctx, "l1")
	_, ok = c.Get(ctx, "l1", "2026-03-01", "2026-04-01")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "l1", "a", "b", nil)
	dates, ok := c.Get(ctx, "l1", "a", "b")
	assert.True(t, ok)
	assert.Empty(t, dates)

	now = now.Add(5 * time.Minute)
	_, ok = c.Get(ctx, "l1", "a", "b")
	assert.False(t, ok)
}

func TestNewFallsBackToMemory(t *testing.T) {
	c := New(nil, time.Minute, nil)
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
	assert.Equal(t, "unavailable:abc", Key("abc"))
}

func TestNoopCache(t *testing.T) {
	var c UnavailableCache = NoopCache{}
	c.Set(context.Background(), "l1", "a", "b", []string{"x"})
	_, ok := c.Get(context.Background(), "l1", "a", "b")
	assert.False(t, ok)
}
