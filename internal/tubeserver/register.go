package tubeserver

import (
	"context"
	"net/url"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchInput is the argument of the video_search and channel_search tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"Search keywords (e.g. lofi hip hop, golang tutorial)"`
	Page  int    `json:"page,omitempty" jsonschema:"1-based result page; defaults to 1"`
}

// SuggestInput is the argument of the search_suggest tool.
type SuggestInput struct {
	Query string `json:"query" jsonschema:"Partial query to complete"`
}

// RegisterTools registers video_search, channel_search and search_suggest on
// the given MCP server. Tools return the same JSON the HTTP endpoints serve
// and share the rendered cache with them under an mcp: signature.
func RegisterTools(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_search",
		Description: "Search videos, channels and playlists across public Invidious and Piped mirrors with a results-page fallback. Returns JSON {items, nextPage, error?}; items carry kind, id, title and, for videos, channel, duration, view count and thumbnails.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
		return textResult(svc.Search(ctx, toolSignature("video_search", input.Query, input.Page), input.Query, input.Page)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_search",
		Description: "Search channels only. Returns JSON {items, nextPage, error?} where every item has kind=channel, id, title and avatar.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
		return textResult(svc.Channels(ctx, toolSignature("channel_search", input.Query, input.Page), input.Query, input.Page)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_suggest",
		Description: "Autocomplete a partial search query. Returns JSON {suggestions, error?} with at most 10 suggestions.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SuggestInput) (*mcp.CallToolResult, any, error) {
		return textResult(svc.Suggest(ctx, toolSignature("search_suggest", input.Query, 0), input.Query)), nil, nil
	})
}

func toolSignature(tool, q string, page int) string {
	v := url.Values{"q": {q}}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	return "mcp:" + tool + "?" + v.Encode()
}

func textResult(r Response) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(r.Body)}},
	}
}
