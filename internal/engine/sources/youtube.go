// Package sources turns a query into ordered upstream tiers and parses each
// tier's payloads into canonical items.
//
// Split by responsibility:
//
//	pool.go            built-in pools, pool resolution, tier/candidate URL builders
//	invidious.go       Invidious /api/v1/search schema and normalizer
//	piped.go           Piped /search schema and normalizer
//	youtube_search.go  results-page scrape: ytInitialData extraction and renderers
//	suggest.go         suggestion payloads for all three suggestion tiers
package sources
