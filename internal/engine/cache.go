package engine

import (
	"container/list"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace separates logically distinct entries sharing one store.
type Namespace string

const (
	// NSRaw holds upstream payloads keyed by the exact outbound URL.
	NSRaw Namespace = "raw"
	// NSRendered holds finished responses keyed by the inbound request.
	NSRendered Namespace = "rendered"
)

// Cache provides 2-tier caching: L1 in-memory LRU + optional L2 Redis.
// L1 is fast but lost on restart. L2 survives restarts.
// Every entry expires ttl after insertion regardless of how often it is read.
type Cache struct {
	mu         sync.Mutex
	ll         *list.List               // front = most recently used
	items      map[string]*list.Element // key -> element holding *cacheEntry
	rdb        *redis.Client            // nil if Redis unavailable
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type cacheEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithRedis attaches an already connected L2 client.
func WithRedis(rdb *redis.Client) CacheOption {
	return func(c *Cache) { c.rdb = rdb }
}

// NewCache sets up the 2-tier cache. redisURL can be empty to disable L2.
// A cleanupInterval <= 0 disables the background janitor.
func NewCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	if c.rdb == nil && redisURL != "" {
		c.rdb = connectRedis(redisURL)
	}

	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", maxEntries))

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

func connectRedis(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		_ = rdb.Close()
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

// CacheKey builds a deterministic cache key from a namespace and parts.
func CacheKey(ns Namespace, parts ...string) string {
	joined := string(ns) + "|" + strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("tp:%x", hash[:12]) // 24-char hex
}

// TTL returns the lifetime applied by Set.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get tries L1, then L2. On L2 hit, populates L1 with the remaining lifetime.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			c.ll.MoveToFront(el)
			data := entry.data
			c.mu.Unlock()
			metrics.CacheHits.Add(1)
			return data, true
		}
		c.removeElement(el) // expired
	}
	c.mu.Unlock()

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			ttl := c.ttl
			if remaining, err := c.rdb.PTTL(ctx, key).Result(); err == nil && remaining > 0 {
				ttl = remaining
			}
			slog.Debug("cache: L2 hit", slog.String("key", key))
			c.store(key, data, ttl)
			metrics.CacheHits.Add(1)
			return data, true
		}
	}

	metrics.CacheMisses.Add(1)
	return nil, false
}

// Set stores value in both L1 and L2 with the given ttl (<= 0 uses the
// cache default). The stored value replaces any previous one wholesale.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.store(key, value, ttl)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Len returns the number of L1 entries, expired ones included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close stops the janitor and releases the Redis connection.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func (c *Cache) store(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		el.Value = &cacheEntry{key: key, data: data, expiresAt: expiresAt}
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, data: data, expiresAt: expiresAt})
	c.evictIfNeeded()
}

// evictIfNeeded drops least recently used entries while over capacity.
// Caller holds mu.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	for c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
		metrics.CacheEvictions.Add(1)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}

// sweep removes every expired L1 entry.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*cacheEntry).expiresAt) {
			c.removeElement(el)
		}
		el = prev
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}
