package engine

import "log/slog"

// Engine owns the process-wide cache and the fetch layer. It is built once in
// main and injected into the transports.
type Engine struct {
	Cache  *Cache
	Runner *Runner
	cfg    Config
}

// New builds an engine from cfg; zero fields take DefaultConfig values.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	cache := NewCache(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval)
	upstream := NewHTTPUpstream(cfg.HTTPClient, cfg.FetchTimeout, cfg.FetchRetries)

	var browser Upstream
	if cfg.BrowserClient != nil {
		browser = NewBrowserUpstream(cfg.BrowserClient, cfg.FetchTimeout)
	}

	slog.Info("engine: initialized",
		slog.Duration("fetch_timeout", cfg.FetchTimeout),
		slog.Int("fetch_retries", cfg.FetchRetries),
		slog.Bool("browser", browser != nil))

	return &Engine{
		Cache:  cache,
		Runner: NewRunner(upstream, browser, cache),
		cfg:    cfg,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Close releases the cache.
func (e *Engine) Close() error { return e.Cache.Close() }
