package engine

import (
	"html"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// UserAgentBot identifies mirror API requests.
const UserAgentBot = "GoTubeProxy/1.0"

var spaceRe = regexp.MustCompile(`\s+`)

// CleanText decodes HTML entities and collapses whitespace. Mirror APIs
// return plain text that is sometimes entity-escaped ("&amp;", "&#39;");
// angle brackets are content, not markup, and are kept.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
