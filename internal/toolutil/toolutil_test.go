package toolutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"1", 1},
		{"7", 7},
		{" 2 ", 2},
		{"0", 1},
		{"-4", 1},
		{"two", 1},
		{"2.5", 1},
	}
	for _, tt := range tests {
		if got := ParsePage(tt.in); got != tt.want {
			t.Errorf("ParsePage(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormQuery(t *testing.T) {
	if got := NormQuery("  lo-fi beats \n"); got != "lo-fi beats" {
		t.Errorf("NormQuery trimmed = %q", got)
	}
	if got := NormQuery("   "); got != "" {
		t.Errorf("NormQuery blank = %q", got)
	}
	long := strings.Repeat("é", MaxQueryRunes+50)
	if got := NormQuery(long); len([]rune(got)) != MaxQueryRunes {
		t.Errorf("NormQuery long = %d runes", len([]rune(got)))
	}
}

func TestCacheJSON(t *testing.T) {
	c := engine.NewCache("", time.Minute, 10, 0)
	defer c.Close()
	ctx := context.Background()

	type payload struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}

	if _, ok := CacheLoadJSON[payload](ctx, c, "k"); ok {
		t.Fatal("expected miss")
	}
	CacheStoreJSON(ctx, c, "k", payload{Status: 200, Body: "x"})
	got, ok := CacheLoadJSON[payload](ctx, c, "k")
	if !ok || got.Status != 200 || got.Body != "x" {
		t.Errorf("got %+v ok=%v", got, ok)
	}

	c.Set(ctx, "bad", []byte("{not json"), 0)
	if _, ok := CacheLoadJSON[payload](ctx, c, "bad"); ok {
		t.Error("undecodable entry reported as hit")
	}
}
