// Package toolutil provides request-level helpers shared by the HTTP and MCP
// transports of go_tubeproxy.
package toolutil

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

// MaxQueryRunes bounds the query forwarded upstream.
const MaxQueryRunes = 200

// NormQuery trims q and caps it at MaxQueryRunes. An all-blank query
// becomes "".
func NormQuery(q string) string {
	return engine.TruncateRunes(strings.TrimSpace(q), MaxQueryRunes, "")
}

// ParsePage parses a 1-based page number. Missing, invalid and < 1 values
// are treated as 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// CacheLoadJSON tries to load a cached value of type T.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, c *engine.Cache, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Debug("cache: undecodable entry", slog.String("key", key), slog.Any("error", err))
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it with the cache's default TTL.
func CacheStoreJSON[T any](ctx context.Context, c *engine.Cache, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	c.Set(ctx, key, data, 0)
}
