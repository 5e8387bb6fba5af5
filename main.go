// go_tubeproxy is a resilient video search aggregation proxy.
//
// Serves /search, /channels and /suggest over HTTP, answering from a pool of
// Invidious mirrors, then Piped mirrors, then the public results page (or
// the public suggest endpoint). Optionally exposes the same operations as MCP
// tools: video_search, channel_search, search_suggest.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
	"github.com/anatolykoptev/go_tubeproxy/internal/engine/sources"
	"github.com/anatolykoptev/go_tubeproxy/internal/tubeserver"
)

var (
	version  = "dev"
	httpAddr = env.Str("HTTP_ADDR", ":8080")
	mcpPort  = env.Str("MCP_PORT", "")
)

func main() {
	setupLogging(env.Str("LOG_LEVEL", "info"))

	cfg := engineConfig()
	eng := engine.New(cfg)
	defer eng.Close()

	pools := poolsConfig(cfg.BrowserClient != nil)
	svc := tubeserver.NewService(eng, pools)

	slog.Info("starting go_tubeproxy",
		slog.String("version", version),
		slog.String("addr", httpAddr),
		slog.Int("invidious", len(pools.Invidious)),
		slog.Int("piped", len(pools.Piped)),
		slog.String("invidious_strategy", pools.InvidiousStrategy.String()),
		slog.String("piped_strategy", pools.PipedStrategy.String()))

	if mcpPort != "" {
		go runMCP(svc)
	}

	router := tubeserver.NewRouter(svc, tubeserver.RouterConfig{
		CORSOrigins:    env.List("CORS_ORIGINS", "*"),
		RateLimitRPS:   env.Float("RATE_LIMIT_RPS", 10),
		RateLimitBurst: env.Int("RATE_LIMIT_BURST", 20),
	})
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
			eng.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", slog.Any("error", err))
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func engineConfig() engine.Config {
	c := engine.Config{
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 4*time.Second),
		FetchRetries:         env.Int("FETCH_RETRIES", 1),
		CacheTTL:             env.Duration("CACHE_TTL", 10*time.Minute),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		RedisURL:             env.Str("REDIS_URL", ""),
	}

	if envBool("STEALTH_SCRAPE", true) {
		timeoutSec := max(int((c.FetchTimeout+time.Second-1)/time.Second), 1)
		bc, err := engine.NewBrowserClient(timeoutSec, env.Str("WEBSHARE_API_KEY", ""))
		if err != nil {
			slog.Warn("stealth client init failed, results page uses plain HTTP", slog.Any("error", err))
		} else {
			c.BrowserClient = bc
			slog.Info("stealth browser client initialized")
		}
	}
	return c
}

func poolsConfig(browser bool) sources.Pools {
	p := sources.DefaultPools()
	p.Invidious = sources.ResolvePool(env.List("INVIDIOUS_INSTANCES", ""), sources.DefaultInvidious)
	p.Piped = sources.ResolvePool(env.List("PIPED_INSTANCES", ""), sources.DefaultPiped)
	p.YouTube = sources.ResolvePool([]string{env.Str("YOUTUBE_BASE_URL", "")}, []string{sources.DefaultYouTubeBase})[0]
	p.Suggest = sources.ResolvePool([]string{env.Str("SUGGEST_BASE_URL", "")}, []string{sources.DefaultSuggestBase})[0]
	p.InvidiousStrategy = engine.ParseStrategy(env.Str("INVIDIOUS_STRATEGY", "race"))
	p.PipedStrategy = engine.ParseStrategy(env.Str("PIPED_STRATEGY", "sequential"))
	p.HL = env.Str("SUGGEST_HL", "en")
	p.GL = env.Str("SUGGEST_GL", "US")
	p.Browser = browser
	return p
}

func runMCP(svc *tubeserver.Service) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_tubeproxy",
		Version: version,
	}, nil)
	tubeserver.RegisterTools(server, svc)
	slog.Info("mcp tools registered", slog.Int("count", 3), slog.String("port", mcpPort))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_tubeproxy",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 60 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("mcp server failed", slog.Any("error", err))
	}
}

// envBool reads a boolean variable; unset or unparsable values yield def.
func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
