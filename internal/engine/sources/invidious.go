package sources

import (
	"encoding/json"
	"fmt"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

// Invidious /api/v1/search returns a bare array of typed entries; errors come
// back as an object, which fails to decode as the array and is malformed.
func parseInvidiousSearch(c engine.Candidate, body []byte) ([]engine.Item, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("invidious search: %w", engine.ErrMalformed)
	}

	items := make([]engine.Item, 0, len(entries))
	for _, raw := range entries {
		a, err := engine.DecodeAttrs(raw)
		if err != nil {
			continue
		}
		if it, ok := invidiousItem(c.Base, a); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func invidiousItem(base string, a engine.Attrs) (engine.Item, bool) {
	var it engine.Item
	switch a.String("type") {
	case "video", "shortVideo":
		it = engine.NewVideo(engine.Video{
			ID:            a.String("videoId", "id"),
			Title:         engine.CleanText(a.String("title")),
			ChannelName:   a.String("author", "uploader", "uploaderName"),
			ChannelID:     invidiousChannelID(a),
			Duration:      a.OptInt("lengthSeconds", "duration"),
			ViewCount:     a.Int("viewCount", "views"),
			PublishedText: a.String("publishedText", "uploadedDate"),
			Thumbnails:    absURLs(base, a.URLs("videoThumbnails", "thumbnail")),
		})
	case "channel":
		it = engine.NewChannel(engine.Channel{
			ID:     a.String("authorId", "channelId"),
			Title:  engine.CleanText(a.String("author", "name", "title")),
			Avatar: engine.AbsURL(base, invidiousAvatar(a)),
		})
	case "playlist":
		it = engine.NewPlaylist(engine.Playlist{
			ID:    a.String("playlistId", "id"),
			Title: engine.CleanText(a.String("title")),
		})
	default:
		return engine.Item{}, false
	}
	return it, it.Valid()
}

func invidiousChannelID(a engine.Attrs) string {
	if id := a.String("authorId", "channelId"); id != "" {
		return id
	}
	return engine.PathAfter(a.String("authorUrl"), "/channel/")
}

// invidiousAvatar takes the largest author thumbnail, which Invidious lists last.
func invidiousAvatar(a engine.Attrs) string {
	if thumbs := a.URLs("authorThumbnails"); len(thumbs) > 0 {
		return thumbs[len(thumbs)-1]
	}
	return a.String("thumbnail")
}

// absURLs resolves refs against base, dropping unresolvable ones. The cap is
// applied by engine.NewVideo.
func absURLs(base string, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, min(len(refs), engine.MaxThumbnails))
	for _, r := range refs {
		if u := engine.AbsURL(base, r); u != "" {
			out = append(out, u)
			if len(out) == engine.MaxThumbnails {
				break
			}
		}
	}
	return out
}
