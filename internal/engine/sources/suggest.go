package sources

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

// Invidious: {"query": "...", "suggestions": ["..."]}
func parseInvidiousSuggest(_ engine.Candidate, body []byte) ([]string, error) {
	var resp struct {
		Suggestions *[]string `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Suggestions == nil {
		return nil, fmt.Errorf("invidious suggest: %w", engine.ErrMalformed)
	}
	return FinalizeSuggestions(*resp.Suggestions), nil
}

// Piped: a bare list of strings.
func parsePipedSuggest(_ engine.Candidate, body []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("piped suggest: %w", engine.ErrMalformed)
	}
	return FinalizeSuggestions(list), nil
}

// Google firefox client: ["query", ["s1", "s2", ...], ...]
func parseGoogleSuggest(_ engine.Candidate, body []byte) ([]string, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(body, &tuple); err != nil || len(tuple) < 2 {
		return nil, fmt.Errorf("google suggest: %w", engine.ErrMalformed)
	}
	var list []string
	if err := json.Unmarshal(tuple[1], &list); err != nil {
		return nil, fmt.Errorf("google suggest: %w", engine.ErrMalformed)
	}
	return FinalizeSuggestions(list), nil
}

// FinalizeSuggestions decodes entities, drops blanks and caps the list at
// engine.MaxSuggestions, preserving order. The result is never nil.
func FinalizeSuggestions(in []string) []string {
	out := make([]string, 0, min(len(in), engine.MaxSuggestions))
	for _, s := range in {
		if s = engine.CleanText(s); strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if len(out) == engine.MaxSuggestions {
			break
		}
	}
	return out
}
