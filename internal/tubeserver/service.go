// Package tubeserver exposes the search proxy over HTTP and MCP.
package tubeserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
	"github.com/anatolykoptev/go_tubeproxy/internal/engine/sources"
	"github.com/anatolykoptev/go_tubeproxy/internal/toolutil"
)

// slowRequest is the threshold above which a request is logged as slow.
const slowRequest = 5 * time.Second

// Response is a finished response: the exact status and body served to the
// caller and stored in the rendered cache.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Service answers search, channel search and suggestion requests. Successful
// responses are cached under the caller's request signature; degraded ones
// are recomputed on the next request.
type Service struct {
	cache  *engine.Cache
	runner *engine.Runner
	pools  sources.Pools
}

func NewService(eng *engine.Engine, pools sources.Pools) *Service {
	return &Service{cache: eng.Cache, runner: eng.Runner, pools: pools}
}

// Search runs a video search. sig identifies the inbound request.
func (s *Service) Search(ctx context.Context, sig, q string, page int) Response {
	return s.search(ctx, sources.OpSearch, sig, q, page)
}

// Channels runs a channel search.
func (s *Service) Channels(ctx context.Context, sig, q string, page int) Response {
	return s.search(ctx, sources.OpChannels, sig, q, page)
}

func (s *Service) search(ctx context.Context, op sources.Op, sig, q string, page int) Response {
	q = toolutil.NormQuery(q)
	if q == "" {
		return render(engine.EmptySearch(""))
	}
	if page < 1 {
		page = 1
	}

	return s.cached(ctx, op.String(), sig, func(ctx context.Context) (any, bool) {
		res := engine.Fallback(ctx, s.runner, s.pools.SearchTiers(op, q, page))
		if res.Degraded {
			return engine.EmptySearch(res.Marker), true
		}
		next := page + 1
		return engine.SearchOutput{Items: res.Items, NextPage: &next}, false
	})
}

// Suggest returns query completions.
func (s *Service) Suggest(ctx context.Context, sig, q string) Response {
	q = toolutil.NormQuery(q)
	if q == "" {
		return render(engine.EmptySuggest(""))
	}

	return s.cached(ctx, "suggest", sig, func(ctx context.Context) (any, bool) {
		res := engine.Fallback(ctx, s.runner, s.pools.SuggestTiers(q))
		if res.Degraded {
			return engine.EmptySuggest(res.Marker), true
		}
		return engine.SuggestOutput{Suggestions: res.Items}, false
	})
}

// cached serves sig from the rendered cache or computes it with build. build
// reports whether its output is degraded; degraded output is not stored.
func (s *Service) cached(ctx context.Context, op, sig string, build func(context.Context) (any, bool)) Response {
	key := engine.CacheKey(engine.NSRendered, sig)
	if r, ok := toolutil.CacheLoadJSON[Response](ctx, s.cache, key); ok {
		engine.IncrRenderedHits()
		return r
	}
	engine.IncrRenderedMisses()

	var (
		out      any
		degraded bool
	)
	_ = engine.TrackOperation(ctx, op, slowRequest, func(ctx context.Context) error {
		out, degraded = build(ctx)
		return nil
	})

	r := render(out)
	if degraded {
		engine.IncrDegraded()
		slog.Info("degraded response", slog.String("op", op), slog.String("sig", sig))
		return r
	}
	toolutil.CacheStoreJSON(ctx, s.cache, key, r)
	return r
}

func render(v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("render failed", slog.Any("error", err))
		return Response{Status: http.StatusOK, Body: json.RawMessage(`{"error":"upstream_unavailable"}`)}
	}
	return Response{Status: http.StatusOK, Body: body}
}
