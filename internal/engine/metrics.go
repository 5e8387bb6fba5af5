package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	UpstreamRequests  atomic.Int64
	UpstreamErrors    atomic.Int64
	UpstreamTimeouts  atomic.Int64
	UpstreamCoalesced atomic.Int64
	RawHits           atomic.Int64
	RenderedHits      atomic.Int64
	RenderedMisses    atomic.Int64
	TierFallthroughs  atomic.Int64
	TierWins          atomic.Int64
	RaceCancelled     atomic.Int64
	Degraded          atomic.Int64
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	CacheEvictions    atomic.Int64
}

var metricKeys = []string{
	"upstream_requests", "upstream_errors", "upstream_timeouts", "upstream_coalesced",
	"raw_hits", "rendered_hits", "rendered_misses",
	"tier_wins", "tier_fallthroughs", "race_cancelled", "degraded_responses",
	"cache_hits", "cache_misses", "cache_evictions",
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"upstream_requests":  metrics.UpstreamRequests.Load(),
		"upstream_errors":    metrics.UpstreamErrors.Load(),
		"upstream_timeouts":  metrics.UpstreamTimeouts.Load(),
		"upstream_coalesced": metrics.UpstreamCoalesced.Load(),
		"raw_hits":           metrics.RawHits.Load(),
		"rendered_hits":      metrics.RenderedHits.Load(),
		"rendered_misses":    metrics.RenderedMisses.Load(),
		"tier_wins":          metrics.TierWins.Load(),
		"tier_fallthroughs":  metrics.TierFallthroughs.Load(),
		"race_cancelled":     metrics.RaceCancelled.Load(),
		"degraded_responses": metrics.Degraded.Load(),
		"cache_hits":         metrics.CacheHits.Load(),
		"cache_misses":       metrics.CacheMisses.Load(),
		"cache_evictions":    metrics.CacheEvictions.Load(),
	}
}

// tierWins counts wins per tier name: string -> *atomic.Int64.
var tierWins sync.Map

func countTierWin(tier string) {
	metrics.TierWins.Add(1)
	v, _ := tierWins.LoadOrStore(tier, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// TierWins returns a snapshot of wins per tier.
func TierWins() map[string]int64 {
	out := make(map[string]int64)
	tierWins.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	wins := TierWins()
	tiers := make([]string, 0, len(wins))
	for t := range wins {
		tiers = append(tiers, t)
	}
	slices.Sort(tiers)
	for _, t := range tiers {
		fmt.Fprintf(&sb, "tier_wins{tier=%q} %d\n", t, wins[t])
	}
	return sb.String()
}

// Incrementors for the server package.
func IncrRenderedHits()   { metrics.RenderedHits.Add(1) }
func IncrRenderedMisses() { metrics.RenderedMisses.Add(1) }
func IncrDegraded()       { metrics.Degraded.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if elapsed := time.Since(start); elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
