package engine

import (
	"encoding/json"
	"fmt"
)

// --- Canonical item model ---

// Kind discriminates the canonical item variants.
type Kind string

const (
	KindVideo    Kind = "video"
	KindChannel  Kind = "channel"
	KindPlaylist Kind = "playlist"
)

// MaxThumbnails is the cap applied to a video's thumbnail list.
const MaxThumbnails = 3

// MaxSuggestions is the cap applied to every suggestion list.
const MaxSuggestions = 10

type Video struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ChannelName   string   `json:"channelName,omitempty"`
	ChannelID     string   `json:"channelId,omitempty"`
	Duration      *int64   `json:"duration,omitempty"` // seconds
	ViewCount     int64    `json:"viewCount"`
	PublishedText string   `json:"publishedText,omitempty"`
	Thumbnails    []string `json:"thumbnails,omitempty"`
}

type Channel struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Avatar string `json:"avatar,omitempty"`
}

type Playlist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Item is a tagged variant: exactly one of Video, Channel, Playlist is set,
// matching Kind. Build items with NewVideo/NewChannel/NewPlaylist.
type Item struct {
	Kind     Kind
	Video    *Video
	Channel  *Channel
	Playlist *Playlist
}

// NewVideo returns a video item. View counts below zero are clamped and the
// thumbnail list is capped at MaxThumbnails.
func NewVideo(v Video) Item {
	if v.ViewCount < 0 {
		v.ViewCount = 0
	}
	if len(v.Thumbnails) > MaxThumbnails {
		v.Thumbnails = v.Thumbnails[:MaxThumbnails]
	}
	return Item{Kind: KindVideo, Video: &v}
}

func NewChannel(c Channel) Item { return Item{Kind: KindChannel, Channel: &c} }

func NewPlaylist(p Playlist) Item { return Item{Kind: KindPlaylist, Playlist: &p} }

// ID returns the id of whichever variant is set.
func (it Item) ID() string {
	switch it.Kind {
	case KindVideo:
		if it.Video != nil {
			return it.Video.ID
		}
	case KindChannel:
		if it.Channel != nil {
			return it.Channel.ID
		}
	case KindPlaylist:
		if it.Playlist != nil {
			return it.Playlist.ID
		}
	}
	return ""
}

// Valid reports whether the item carries a known kind and an id.
func (it Item) Valid() bool {
	return it.ID() != ""
}

func (it Item) MarshalJSON() ([]byte, error) {
	switch it.Kind {
	case KindVideo:
		if it.Video != nil {
			return json.Marshal(struct {
				Kind Kind `json:"kind"`
				*Video
			}{it.Kind, it.Video})
		}
	case KindChannel:
		if it.Channel != nil {
			return json.Marshal(struct {
				Kind Kind `json:"kind"`
				*Channel
			}{it.Kind, it.Channel})
		}
	case KindPlaylist:
		if it.Playlist != nil {
			return json.Marshal(struct {
				Kind Kind `json:"kind"`
				*Playlist
			}{it.Kind, it.Playlist})
		}
	}
	return nil, fmt.Errorf("marshal item: incomplete %q variant", it.Kind)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*it = Item{Kind: head.Kind}
	switch head.Kind {
	case KindVideo:
		it.Video = &Video{}
		return json.Unmarshal(data, it.Video)
	case KindChannel:
		it.Channel = &Channel{}
		return json.Unmarshal(data, it.Channel)
	case KindPlaylist:
		it.Playlist = &Playlist{}
		return json.Unmarshal(data, it.Playlist)
	}
	return fmt.Errorf("unmarshal item: unknown kind %q", head.Kind)
}

// --- Response shapes ---

// Soft-failure markers carried in the error field of degraded responses.
const (
	MarkerUnavailable = "upstream_unavailable"
	MarkerParseFailed = "parse_failed"
)

type SearchOutput struct {
	Items    []Item `json:"items"`
	NextPage *int   `json:"nextPage"`
	Error    string `json:"error,omitempty"`
}

type SuggestOutput struct {
	Suggestions []string `json:"suggestions"`
	Error       string   `json:"error,omitempty"`
}

// EmptySearch is the canonical empty search result: a non-nil item list and
// no next page.
func EmptySearch(marker string) SearchOutput {
	return SearchOutput{Items: []Item{}, Error: marker}
}

// EmptySuggest is the canonical empty suggestion result.
func EmptySuggest(marker string) SuggestOutput {
	return SuggestOutput{Suggestions: []string{}, Error: marker}
}
