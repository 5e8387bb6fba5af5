package sources

import (
	"encoding/json"
	"fmt"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

type pipedSearchResp struct {
	Items *[]json.RawMessage `json:"items"`
}

// Piped /search wraps entries in {"items": [...], "nextpage": ...}. A
// response without an items list (error objects) is malformed.
func parsePipedSearch(c engine.Candidate, body []byte) ([]engine.Item, error) {
	var resp pipedSearchResp
	if err := json.Unmarshal(body, &resp); err != nil || resp.Items == nil {
		return nil, fmt.Errorf("piped search: %w", engine.ErrMalformed)
	}

	items := make([]engine.Item, 0, len(*resp.Items))
	for _, raw := range *resp.Items {
		a, err := engine.DecodeAttrs(raw)
		if err != nil {
			continue
		}
		if it, ok := pipedItem(c.Base, a); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func pipedItem(base string, a engine.Attrs) (engine.Item, bool) {
	link := a.String("url")

	var it engine.Item
	switch a.String("type") {
	case "stream", "video":
		id := engine.URLParam(link, "v")
		if id == "" {
			id = a.String("videoId", "id")
		}
		it = engine.NewVideo(engine.Video{
			ID:            id,
			Title:         engine.CleanText(a.String("title", "name")),
			ChannelName:   a.String("uploaderName", "uploader", "author"),
			ChannelID:     pipedChannelID(a),
			Duration:      a.OptInt("duration", "lengthSeconds"),
			ViewCount:     a.Int("views", "viewCount"),
			PublishedText: a.String("uploadedDate", "publishedText"),
			Thumbnails:    absURLs(base, a.URLs("thumbnail", "thumbnails")),
		})
	case "channel":
		id := engine.PathAfter(link, "/channel/")
		if id == "" {
			id = a.String("channelId")
		}
		it = engine.NewChannel(engine.Channel{
			ID:     id,
			Title:  engine.CleanText(a.String("name", "title", "author")),
			Avatar: engine.AbsURL(base, a.String("thumbnail", "avatar")),
		})
	case "playlist":
		id := engine.URLParam(link, "list")
		if id == "" {
			id = a.String("playlistId")
		}
		it = engine.NewPlaylist(engine.Playlist{
			ID:    id,
			Title: engine.CleanText(a.String("name", "title")),
		})
	default:
		return engine.Item{}, false
	}
	return it, it.Valid()
}

func pipedChannelID(a engine.Attrs) string {
	if id := engine.PathAfter(a.String("uploaderUrl"), "/channel/"); id != "" {
		return id
	}
	return a.String("uploaderId", "channelId")
}
