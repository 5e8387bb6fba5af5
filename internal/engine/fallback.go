package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Strategy selects how candidates inside one tier are executed.
type Strategy int

const (
	// Sequential tries candidates in pool order until one yields items.
	Sequential Strategy = iota
	// Race issues all candidates at once; the first to yield items wins and
	// the rest are cancelled.
	Race
)

// ParseStrategy maps "race" to Race; anything else is Sequential.
func ParseStrategy(s string) Strategy {
	if strings.EqualFold(strings.TrimSpace(s), "race") {
		return Race
	}
	return Sequential
}

func (s Strategy) String() string {
	if s == Race {
		return "race"
	}
	return "sequential"
}

// Tier is one upstream family: its candidates, how to run them, and how to
// turn a payload into items. Parse must return an error wrapping ErrMalformed
// or ErrParse for payloads it cannot read, and an empty slice for valid but
// empty payloads. Compact, when set, reduces a body that parsed to the part
// worth keeping in the raw cache; Parse must accept its output as well.
type Tier[T any] struct {
	Name       string
	Strategy   Strategy
	Candidates []Candidate
	Parse      func(c Candidate, body []byte) ([]T, error)
	Compact    func(body []byte) []byte
}

// Result is what the orchestrator hands back. It never carries an error:
// exhaustion is reported through Degraded and Marker.
type Result[T any] struct {
	Items    []T
	Tier     string // winning tier
	Source   string // winning pool member
	Degraded bool
	Marker   string
}

// Runner binds the fetch layer and the raw cache the orchestrator runs on.
type Runner struct {
	upstream Upstream
	browser  Upstream // nil = browser candidates use upstream
	raw      *Cache   // nil = raw caching disabled
}

func NewRunner(upstream, browser Upstream, raw *Cache) *Runner {
	return &Runner{upstream: upstream, browser: browser, raw: raw}
}

func (r *Runner) upstreamFor(c Candidate) Upstream {
	if c.Browser && r.browser != nil {
		return r.browser
	}
	return r.upstream
}

// Fallback executes tiers in order and returns the first non-empty result.
// If every tier fails, is empty, or has no candidates, the result is an
// empty degraded one.
func Fallback[T any](ctx context.Context, r *Runner, tiers []Tier[T]) Result[T] {
	var lastErr error
	for _, tier := range tiers {
		if ctx.Err() != nil {
			break
		}
		items, c, err := runTier(ctx, r, tier)
		if err == nil {
			countTierWin(tier.Name)
			slog.Debug("fallback: tier won",
				slog.String("tier", tier.Name),
				slog.String("source", c.Base),
				slog.Int("items", len(items)))
			return Result[T]{Items: items, Tier: tier.Name, Source: c.Base}
		}
		if !errors.Is(err, ErrNoCandidates) {
			lastErr = err
		}
		metrics.TierFallthroughs.Add(1)
		slog.Debug("fallback: tier fell through",
			slog.String("tier", tier.Name),
			slog.Int("candidates", len(tier.Candidates)),
			slog.Any("error", err))
	}

	marker := MarkerUnavailable
	if lastErr != nil && errors.Is(lastErr, ErrParse) {
		marker = MarkerParseFailed
	}
	slog.Warn("fallback: all tiers exhausted", slog.Int("tiers", len(tiers)), slog.String("marker", marker))
	return Result[T]{Items: []T{}, Degraded: true, Marker: marker}
}

func runTier[T any](ctx context.Context, r *Runner, tier Tier[T]) ([]T, Candidate, error) {
	if len(tier.Candidates) == 0 {
		return nil, Candidate{}, ErrNoCandidates
	}
	if tier.Strategy == Race && len(tier.Candidates) > 1 {
		return race(ctx, r, tier)
	}
	return sequential(ctx, r, tier)
}

func sequential[T any](ctx context.Context, r *Runner, tier Tier[T]) ([]T, Candidate, error) {
	var errs []error
	for _, c := range tier.Candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		items, err := attempt(ctx, r, tier, c)
		if err == nil {
			return items, c, nil
		}
		slog.Debug("fallback: candidate failed",
			slog.String("tier", tier.Name),
			slog.String("url", c.URL),
			slog.String("kind", failureKind(err)))
		errs = append(errs, err)
	}
	return nil, Candidate{}, errors.Join(errs...)
}

// race runs every candidate concurrently. The first success cancels the
// shared context; losers observe it, skip the raw cache write, and drain
// into the buffered channel without being awaited.
func race[T any](ctx context.Context, r *Runner, tier Tier[T]) ([]T, Candidate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		items []T
		c     Candidate
		err   error
	}
	out := make(chan outcome, len(tier.Candidates))
	for _, c := range tier.Candidates {
		go func(c Candidate) {
			items, err := attempt(ctx, r, tier, c)
			out <- outcome{items: items, c: c, err: err}
		}(c)
	}

	var errs []error
	for i := range tier.Candidates {
		o := <-out
		if o.err == nil {
			if pending := len(tier.Candidates) - i - 1; pending > 0 {
				metrics.RaceCancelled.Add(int64(pending))
			}
			return o.items, o.c, nil
		}
		slog.Debug("fallback: race candidate failed",
			slog.String("tier", tier.Name),
			slog.String("url", o.c.URL),
			slog.String("kind", failureKind(o.err)))
		errs = append(errs, o.err)
	}
	return nil, Candidate{}, errors.Join(errs...)
}

// attempt resolves one candidate through the raw cache or the network and
// parses it. Only payloads that parse are cached, and only while the
// request is still live.
func attempt[T any](ctx context.Context, r *Runner, tier Tier[T], c Candidate) ([]T, error) {
	key := CacheKey(NSRaw, c.URL)
	if body, ok := r.raw.Get(ctx, key); ok {
		metrics.RawHits.Add(1)
		items, err := parse(tier, c, body)
		if err == nil {
			return nonEmpty(items)
		}
		slog.Debug("fallback: cached payload rejected", slog.String("url", c.URL), slog.Any("error", err))
	}

	body, err := r.upstreamFor(c).Fetch(ctx, c)
	if err != nil {
		return nil, err
	}
	items, err := parse(tier, c, body)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		if tier.Compact != nil {
			body = tier.Compact(body)
		}
		r.raw.Set(ctx, key, body, 0)
	}
	return nonEmpty(items)
}

func parse[T any](tier Tier[T], c Candidate, body []byte) ([]T, error) {
	items, err := tier.Parse(c, body)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, ErrParse) && !errors.Is(err, ErrMalformed) {
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil, fmt.Errorf("%s: %w", c.Base, err)
}

func nonEmpty[T any](items []T) ([]T, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return items, nil
}
