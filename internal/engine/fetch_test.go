package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func candidateFor(srv *httptest.Server, path string) Candidate {
	return Candidate{Tier: "test", Base: srv.URL, URL: srv.URL + path}
}

func TestHTTPUpstreamFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgentBot {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Extra") != "1" {
			t.Errorf("candidate header not forwarded")
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	u := NewHTTPUpstream(srv.Client(), time.Second, 1)
	c := candidateFor(srv, "/api")
	c.Headers = map[string]string{"X-Extra": "1"}

	got, err := u.Fetch(context.Background(), c)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("body = %q", got)
	}
}

func TestHTTPUpstreamStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		tries     int
		wantCalls int32
	}{
		{"not found is not retried", http.StatusNotFound, 3, 1},
		{"single try", http.StatusServiceUnavailable, 1, 1},
		{"retryable status retried", http.StatusTooManyRequests, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			u := NewHTTPUpstream(srv.Client(), 3*time.Second, tt.tries)
			_, err := u.Fetch(context.Background(), candidateFor(srv, "/x"))

			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.status {
				t.Fatalf("err = %v, want StatusError %d", err, tt.status)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestHTTPUpstreamRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	u := NewHTTPUpstream(srv.Client(), 3*time.Second, 2)
	got, err := u.Fetch(context.Background(), candidateFor(srv, "/x"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "ok" {
		t.Errorf("body = %q", got)
	}
}

func TestHTTPUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	u := NewHTTPUpstream(srv.Client(), 50*time.Millisecond, 1)
	start := time.Now()
	_, err := u.Fetch(context.Background(), candidateFor(srv, "/slow"))
	if !IsTimeout(err) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestHTTPUpstreamSharedFetchSurvivesCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		started <- struct{}{}
		<-gate
		w.Write([]byte("shared"))
	}))
	defer srv.Close()

	u := NewHTTPUpstream(srv.Client(), 2*time.Second, 1)
	c := candidateFor(srv, "/same")

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := u.Fetch(ctxA, c)
		errA <- err
	}()
	<-started

	type result struct {
		body []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := u.Fetch(context.Background(), c)
		resB <- result{got, err}
	}()
	// Let the second caller join the in-flight request.
	time.Sleep(100 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}
	close(gate)

	r := <-resB
	if r.err != nil {
		t.Fatalf("live caller: %v", r.err)
	}
	if string(r.body) != "shared" {
		t.Errorf("live caller body = %q, want shared", r.body)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestHTTPUpstreamCoalesces(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-gate
		w.Write([]byte("shared"))
	}))
	defer srv.Close()

	u := NewHTTPUpstream(srv.Client(), 2*time.Second, 1)
	c := candidateFor(srv, "/same")

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := u.Fetch(context.Background(), c)
			if err == nil && string(got) != "shared" {
				err = errors.New("unexpected body " + string(got))
			}
			errs <- err
		}()
	}
	// Let every caller join the in-flight request before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Fetch: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestHTTPUpstreamGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed"))
		gz.Close()
	}))
	defer srv.Close()

	// A bare transport leaves gzip decoding to readResponseBody.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	u := NewHTTPUpstream(client, time.Second, 1)
	got, err := u.Fetch(context.Background(), candidateFor(srv, "/gz"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "compressed" {
		t.Errorf("body = %q", got)
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrEmpty, "empty"},
		{ErrParse, "parse"},
		{ErrMalformed, "malformed"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "cancelled"},
		{&StatusError{Code: 503}, "status"},
		{errors.New("dial tcp: refused"), "network"},
	}
	for _, tt := range tests {
		if got := failureKind(tt.err); got != tt.want {
			t.Errorf("failureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
