package engine

import (
	"net/http"
	"time"
)

// Config holds the engine configuration, injected from main.
type Config struct {
	FetchTimeout         time.Duration // per-candidate bound, not per-tier
	FetchRetries         int           // attempts per candidate for 429/5xx; 1 = no retry
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RedisURL             string         // empty = L2 disabled
	HTTPClient           *http.Client   // nil = DefaultHTTPClient()
	BrowserClient        *BrowserClient // nil = scrape tier uses HTTPClient
}

// DefaultConfig returns the built-in defaults used when a value is unset.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:         4 * time.Second,
		FetchRetries:         1,
		CacheTTL:             10 * time.Minute,
		CacheMaxEntries:      1000,
		CacheCleanupInterval: 5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.FetchRetries <= 0 {
		c.FetchRetries = d.FetchRetries
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = d.CacheCleanupInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = DefaultHTTPClient()
	}
	return c
}

// DefaultHTTPClient returns the pooled client used for mirror requests.
// Timeouts are applied per candidate through the request context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}
