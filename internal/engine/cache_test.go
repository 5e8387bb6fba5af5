package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey(NSRaw, "https://a.example/api/v1/search?q=go")
		k2 := CacheKey(NSRaw, "https://a.example/api/v1/search?q=go")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("namespaces differ", func(t *testing.T) {
		k1 := CacheKey(NSRaw, "/search?q=go")
		k2 := CacheKey(NSRendered, "/search?q=go")
		if k1 == k2 {
			t.Errorf("namespaces produced same key: %q", k1)
		}
	})

	t.Run("prefix and length", func(t *testing.T) {
		k := CacheKey(NSRendered, "x")
		if !strings.HasPrefix(k, "tp:") {
			t.Errorf("expected tp: prefix, got %q", k)
		}
		if len(k) != 3+24 {
			t.Errorf("key length = %d, want 27", len(k))
		}
	})
}

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(maxEntries int, ttl time.Duration, clock *fakeClock) *Cache {
	return NewCache("", ttl, maxEntries, 0, WithClock(clock.Now))
}

func TestCacheGetSet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(100, time.Minute, clock)
	defer c.Close()

	ctx := context.Background()
	key := CacheKey(NSRendered, "round-trip")

	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected cache miss on empty cache")
	}

	c.Set(ctx, key, []byte("hello"), 0)
	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit after set")
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}

	c.Set(ctx, key, []byte("replaced"), 0)
	got, _ = c.Get(ctx, key)
	if string(got) != "replaced" {
		t.Errorf("after refresh got %q, want %q", got, "replaced")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(100, time.Minute, clock)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)

	clock.Advance(59 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before ttl elapses")
	}

	// Reads do not extend the lifetime.
	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry should be absent once ttl has elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed on read, Len = %d", c.Len())
	}
}

func TestCacheExplicitTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(100, time.Hour, clock)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), 5*time.Second)
	clock.Advance(5 * time.Second)
	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("explicit ttl ignored")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(3, time.Hour, clock)
	defer c.Close()
	ctx := context.Background()

	for i := range 3 {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte{byte(i)}, 0)
	}
	// Touch k0 so k1 becomes least recently used.
	if _, ok := c.Get(ctx, "k0"); !ok {
		t.Fatal("k0 missing")
	}
	c.Set(ctx, "k3", []byte{3}, 0)

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestCacheSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(100, time.Minute, clock)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "old", []byte("v"), 0)
	clock.Advance(30 * time.Second)
	c.Set(ctx, "new", []byte("v"), 0)
	clock.Advance(45 * time.Second)

	c.sweep()
	if c.Len() != 1 {
		t.Fatalf("Len after sweep = %d, want 1", c.Len())
	}
	if _, ok := c.Get(ctx, "new"); !ok {
		t.Error("live entry swept")
	}
}

func TestCacheNil(t *testing.T) {
	var c *Cache
	c.Set(context.Background(), "k", []byte("v"), 0)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("nil cache reported a hit")
	}
}
