package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BrowserUpstream fetches candidates through the Chrome-fingerprinted stealth
// client. Used for the results-page scrape, where plain clients get consent
// walls more often.
type BrowserUpstream struct {
	bc      *BrowserClient
	timeout time.Duration
}

var _ Upstream = (*BrowserUpstream)(nil)

func NewBrowserUpstream(bc *BrowserClient, timeout time.Duration) *BrowserUpstream {
	return &BrowserUpstream{bc: bc, timeout: timeout}
}

// Fetch issues the request with Chrome headers. The stealth client has no
// context support, so the deadline is enforced here and an abandoned request
// finishes against the client's own timeout.
func (u *BrowserUpstream) Fetch(ctx context.Context, c Candidate) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	// The stealth client's user agent matches its TLS fingerprint; keep it.
	headers := ChromeHeaders()
	for k, v := range c.Headers {
		k = strings.ToLower(k)
		if k == "user-agent" {
			continue
		}
		headers[k] = v
	}

	type result struct {
		data   []byte
		status int
		err    error
	}
	done := make(chan result, 1)
	metrics.UpstreamRequests.Add(1)
	go func() {
		data, _, status, err := u.bc.Do(http.MethodGet, c.URL, headers, nil)
		done <- result{data: data, status: status, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			metrics.UpstreamErrors.Add(1)
			return nil, fmt.Errorf("browser fetch %s: %w", c.Base, r.err)
		}
		if r.status != http.StatusOK {
			metrics.UpstreamErrors.Add(1)
			return nil, fmt.Errorf("browser fetch %s: %w", c.Base, &StatusError{Code: r.status})
		}
		return r.data, nil
	case <-ctx.Done():
		metrics.UpstreamErrors.Add(1)
		if IsTimeout(ctx.Err()) {
			metrics.UpstreamTimeouts.Add(1)
		}
		return nil, fmt.Errorf("browser fetch %s: %w", c.Base, ctx.Err())
	}
}
