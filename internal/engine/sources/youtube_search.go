package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

// Results-page scraping: the page embeds its initial render state as a JSON
// object assigned to ytInitialData inside a <script> element.

// initialDataMarkers are tried in order within each script.
var initialDataMarkers = []string{
	"var ytInitialData = ",
	`window["ytInitialData"] = `,
	"ytInitialData = ",
}

// --- ytInitialData renderer types ---

type ytRun struct {
	Text               string `json:"text"`
	NavigationEndpoint struct {
		BrowseEndpoint struct {
			BrowseID string `json:"browseId"`
		} `json:"browseEndpoint"`
	} `json:"navigationEndpoint"`
}

type ytText struct {
	SimpleText string  `json:"simpleText"`
	Runs       []ytRun `json:"runs"`
}

// String returns simpleText, or the concatenated runs.
func (t ytText) String() string {
	if t.SimpleText != "" {
		return strings.TrimSpace(t.SimpleText)
	}
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return strings.TrimSpace(sb.String())
}

type ytThumbnails struct {
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func (t ytThumbnails) urls() []string {
	out := make([]string, 0, len(t.Thumbnails))
	for _, th := range t.Thumbnails {
		out = append(out, th.URL)
	}
	return out
}

type ytVideoRenderer struct {
	VideoID           string       `json:"videoId"`
	Title             ytText       `json:"title"`
	OwnerText         ytText       `json:"ownerText"`
	LongBylineText    ytText       `json:"longBylineText"`
	ShortBylineText   ytText       `json:"shortBylineText"`
	LengthText        ytText       `json:"lengthText"`
	ViewCountText     ytText       `json:"viewCountText"`
	PublishedTimeText ytText       `json:"publishedTimeText"`
	Thumbnail         ytThumbnails `json:"thumbnail"`
}

type ytChannelRenderer struct {
	ChannelID string       `json:"channelId"`
	Title     ytText       `json:"title"`
	Thumbnail ytThumbnails `json:"thumbnail"`
}

// parseResultsPage extracts video and channel items from a results page.
// A page without a usable ytInitialData blob is ErrParse.
// A bare ytInitialData object, as kept in the raw cache, is accepted too.
func parseResultsPage(c engine.Candidate, page []byte) ([]engine.Item, error) {
	blob, err := initialData(page)
	if err != nil {
		return nil, err
	}
	nodes, err := engine.CollectByKey(blob, "videoRenderer", "channelRenderer")
	if err != nil {
		return nil, fmt.Errorf("walk ytInitialData: %w: %v", engine.ErrParse, err)
	}

	items := make([]engine.Item, 0, len(nodes))
	for _, n := range nodes {
		var it engine.Item
		switch n.Key {
		case "videoRenderer":
			var vr ytVideoRenderer
			if json.Unmarshal(n.Raw, &vr) != nil {
				continue
			}
			it = videoFromRenderer(c.Base, vr)
		case "channelRenderer":
			var cr ytChannelRenderer
			if json.Unmarshal(n.Raw, &cr) != nil {
				continue
			}
			it = engine.NewChannel(engine.Channel{
				ID:     cr.ChannelID,
				Title:  cr.Title.String(),
				Avatar: engine.AbsURL(c.Base, first(cr.Thumbnail.urls())),
			})
		}
		if it.Valid() {
			items = append(items, it)
		}
	}
	return items, nil
}

func videoFromRenderer(base string, vr ytVideoRenderer) engine.Item {
	title := vr.Title.SimpleText
	if len(vr.Title.Runs) > 0 {
		title = vr.Title.Runs[0].Text
	}

	var channelName, channelID string
	for _, byline := range []ytText{vr.OwnerText, vr.LongBylineText, vr.ShortBylineText} {
		if len(byline.Runs) == 0 {
			continue
		}
		run := byline.Runs[0]
		channelName = run.Text
		channelID = run.NavigationEndpoint.BrowseEndpoint.BrowseID
		break
	}

	return engine.NewVideo(engine.Video{
		ID:            vr.VideoID,
		Title:         strings.TrimSpace(title),
		ChannelName:   channelName,
		ChannelID:     channelID,
		Duration:      parseClock(vr.LengthText.String()),
		ViewCount:     parseDigits(vr.ViewCountText.String()),
		PublishedText: vr.PublishedTimeText.String(),
		Thumbnails:    absURLs(base, vr.Thumbnail.urls()),
	})
}

// compactResultsPage keeps only the ytInitialData blob of a results page.
// Pages run to about a megabyte; the blob is a fraction of that.
func compactResultsPage(page []byte) []byte {
	blob, err := initialData(page)
	if err != nil {
		return page
	}
	return blob
}

func initialData(page []byte) ([]byte, error) {
	if trimmed := bytes.TrimSpace(page); len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return trimmed, nil
	}
	return extractInitialData(page)
}

// extractInitialData scans every <script> for the first marker followed by a
// balanced JSON object that parses.
func extractInitialData(page []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("results page: %w: %v", engine.ErrParse, err)
	}

	var blob []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, marker := range initialDataMarkers {
			idx := strings.Index(text, marker)
			if idx < 0 {
				continue
			}
			rest := strings.TrimLeft(text[idx+len(marker):], " \t\n")
			if obj := extractJSON([]byte(rest)); obj != nil && json.Valid(obj) {
				blob = obj
				return false
			}
		}
		return true
	})
	if blob == nil {
		return nil, fmt.Errorf("results page: ytInitialData: %w", engine.ErrParse)
	}
	return blob, nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// parseClock converts "h:mm:ss" or "m:ss" to seconds. Anything else is nil.
func parseClock(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var total int64
	for part := range strings.SplitSeq(s, ":") {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

// parseDigits keeps only the digits of s ("1,234,567 views" -> 1234567).
// No digits yields 0.
func parseDigits(s string) int64 {
	var n int64
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int64(r-'0')
		}
	}
	return n
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
