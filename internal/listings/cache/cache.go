// Package cache keeps per-listing unavailable-date lists so calendar views do
// not rescan bookings on every request. Entries are keyed by listing and by
// the requested window; any booking write drops every window of the listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"otithi/pkg/logger"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "unavailable:"

type UnavailableCache interface {
	Get(ctx context.Context, listingID, from, to string) ([]string, bool)
	Set(ctx context.Context, listingID, from, to string, dates []string)
	Invalidate(ctx context.Context, listingID string)
}

// New returns a Redis-backed cache when rdb is set and an in-process one
// otherwise.
func New(rdb *redis.Client, ttl time.Duration, log *logger.Logger) UnavailableCache {
	if rdb == nil {
		return NewMemoryCache(ttl)
	}
	return NewRedisCache(rdb, ttl, log)
}

func Key(listingID string) string {
	return keyPrefix + listingID
}

func field(from, to string) string {
	return from + ":" + to
}

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

// Get treats any Redis failure as a miss.
func (c *RedisCache) Get(ctx context.Context, listingID, from, to string) ([]string, bool) {
	raw, err := c.rdb.HGet(ctx, Key(listingID), field(from, to)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Unavailable-dates cache read failed", "listing_id", listingID, "error", err)
		}
		return nil, false
	}

	var dates []string
	if err := json.Unmarshal(raw, &dates); err != nil {
		c.log.Warn("Discarding corrupt unavailable-dates entry", "listing_id", listingID, "error", err)
		return nil, false
	}
	return dates, true
}

func (c *RedisCache) Set(ctx context.Context, listingID, from, to string, dates []string) {
	if dates == nil {
		dates = []string{}
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return
	}

	key := Key(listingID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, field(from, to), raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("Unavailable-dates cache write failed", "listing_id", listingID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, listingID string) {
	if err := c.rdb.Del(ctx, Key(listingID)).Err(); err != nil {
		c.log.Warn("Unavailable-dates cache invalidation failed", "listing_id", listingID, "error", err)
	}
}

type memoryEntry struct {
	windows   map[string][]string
	expiresAt time.Time
}

// MemoryCache mirrors RedisCache semantics for single-instance runs: the TTL
// applies to the whole listing entry and starts at its first write.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, listingID, from, to string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[listingID]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, listingID)
		return nil, false
	}

	dates, ok := entry.windows[field(from, to)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), dates...), true
}

func (c *MemoryCache) Set(_ context.Context, listingID, from, to string, dates []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[listingID]
	if !ok || !c.now().Before(entry.expiresAt) {
		entry = &memoryEntry{windows: make(map[string][]string)}
		c.entries[listingID] = entry
	}
	entry.windows[field(from, to)] = append([]string{}, dates...)
	entry.expiresAt = c.now().Add(c.ttl)
}

func (c *MemoryCache) Invalidate(_ context.Context, listingID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, listingID)
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string, string) ([]string, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, string, string, []string)        {}
func (NoopCache) Invalidate(context.Context, string)                           {}
