package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/strutil"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// maxBodyBytes caps any upstream body; results pages are ~1 MiB.
const maxBodyBytes = 8 << 20

// Candidate is one fully formed outbound request of a tier.
type Candidate struct {
	Tier    string            // tier name, for logs
	Base    string            // pool member the URL was built from
	URL     string            // exact outbound URL; also the raw cache key
	Headers map[string]string // extra request headers
	Browser bool              // prefer the browser upstream when one is configured
}

// Upstream performs one network fetch for a candidate. Implementations apply
// the per-candidate timeout and return the body of a 200 response.
type Upstream interface {
	Fetch(ctx context.Context, c Candidate) ([]byte, error)
}

// HTTPUpstream fetches candidates with net/http. Identical URLs in flight at
// the same time share a single request.
type HTTPUpstream struct {
	client  *http.Client
	timeout time.Duration
	tries   uint
	group   singleflight.Group
}

var _ Upstream = (*HTTPUpstream)(nil)

// NewHTTPUpstream creates an upstream with a per-candidate timeout and the
// number of attempts made for retryable statuses (429/5xx).
func NewHTTPUpstream(client *http.Client, timeout time.Duration, tries int) *HTTPUpstream {
	if tries < 1 {
		tries = 1
	}
	return &HTTPUpstream{client: client, timeout: timeout, tries: uint(tries)}
}

// Fetch performs an HTTP GET bounded by the per-candidate timeout. The shared
// request is detached from the caller's cancellation so that one caller
// giving up does not fail the others waiting on the same URL.
func (u *HTTPUpstream) Fetch(ctx context.Context, c Candidate) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	flightCtx := context.WithoutCancel(ctx)
	ch := u.group.DoChan(c.URL, func() (any, error) {
		fctx, fcancel := context.WithTimeout(flightCtx, u.timeout)
		defer fcancel()
		return u.fetchWithRetry(fctx, c)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.UpstreamCoalesced.Add(1)
		}
		if res.Err != nil {
			return nil, u.fail(c, res.Err)
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, u.fail(c, ctx.Err())
	}
}

func (u *HTTPUpstream) fail(c Candidate, err error) error {
	metrics.UpstreamErrors.Add(1)
	if IsTimeout(err) {
		metrics.UpstreamTimeouts.Add(1)
	}
	return fmt.Errorf("fetch %s: %w", c.Base, err)
}

// fetchWithRetry performs the GET, retrying retryable statuses with
// exponential backoff inside the candidate's own deadline.
func (u *HTTPUpstream) fetchWithRetry(ctx context.Context, c Candidate) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		req.Header.Set("User-Agent", UserAgentBot)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")
		for k, v := range c.Headers {
			req.Header.Set(k, v)
		}

		metrics.UpstreamRequests.Add(1)
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if IsRetryableStatus(resp.StatusCode) {
			return nil, &StatusError{Code: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			slog.Debug("upstream non-200",
				slog.String("url", c.URL),
				slog.Int("status", resp.StatusCode),
				slog.String("body", strutil.TruncateWith(string(snippet), 200, "...")))
			return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode})
		}

		body, err := readResponseBody(resp)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return body, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = time.Second

	body, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(u.tries))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return nil, err
	}
	return body, nil
}

// readResponseBody reads the response body, handling gzip decompression if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
