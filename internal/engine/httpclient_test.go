package engine

import (
	"context"
	"testing"
	"time"
)

func TestNewBrowserClient(t *testing.T) {
	bc, err := NewBrowserClient(5, "")
	if err != nil {
		t.Fatalf("NewBrowserClient() error = %v", err)
	}
	if bc == nil {
		t.Fatal("NewBrowserClient() returned nil")
	}
}

func TestChromeHeaders(t *testing.T) {
	h := ChromeHeaders()

	required := []string{"accept", "accept-language", "user-agent"}
	for _, key := range required {
		if _, ok := h[key]; !ok {
			t.Errorf("ChromeHeaders() missing key %q", key)
		}
	}

	ua := h["user-agent"]
	if len(ua) < 20 {
		t.Errorf("user-agent too short: %q", ua)
	}
}

func TestBrowserUpstreamDeadline(t *testing.T) {
	bc, err := NewBrowserClient(5, "")
	if err != nil {
		t.Fatalf("NewBrowserClient() error = %v", err)
	}
	u := NewBrowserUpstream(bc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 192.0.2.0/24 is reserved for documentation and never answers.
	_, err = u.Fetch(ctx, Candidate{Base: "http://192.0.2.1", URL: "http://192.0.2.1/results"})
	if err == nil {
		t.Fatal("expected an error for a cancelled request")
	}
}
