package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Attrs is one upstream object decoded just far enough to resolve attributes
// through ordered alias lists. The first alias that is present and usable wins.
type Attrs map[string]json.RawMessage

// DecodeAttrs decodes a JSON object. Anything else is ErrMalformed.
func DecodeAttrs(raw []byte) (Attrs, error) {
	var a Attrs
	if err := json.Unmarshal(raw, &a); err != nil || a == nil {
		return nil, ErrMalformed
	}
	return a, nil
}

// String returns the first alias holding a non-blank JSON string.
func (a Attrs) String(aliases ...string) string {
	for _, k := range aliases {
		raw, ok := a[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Int returns the first alias that coerces to a non-negative integer.
// Absent or non-numeric values yield 0.
func (a Attrs) Int(aliases ...string) int64 {
	if n := a.OptInt(aliases...); n != nil {
		return *n
	}
	return 0
}

// OptInt is Int for optional attributes: nil when no alias is numeric.
func (a Attrs) OptInt(aliases ...string) *int64 {
	for _, k := range aliases {
		raw, ok := a[k]
		if !ok {
			continue
		}
		var n FlexInt
		if json.Unmarshal(raw, &n) == nil && n.Valid {
			v := n.Value
			return &v
		}
	}
	return nil
}

// URLs returns the first alias yielding a non-empty URL list. A value may be
// a single string, a list of strings, or a list of objects with a url field.
func (a Attrs) URLs(aliases ...string) []string {
	for _, k := range aliases {
		raw, ok := a[k]
		if !ok {
			continue
		}
		if urls := decodeURLs(raw); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func decodeURLs(raw json.RawMessage) []string {
	var one string
	if json.Unmarshal(raw, &one) == nil {
		if one = strings.TrimSpace(one); one != "" {
			return []string{one}
		}
		return nil
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		var s string
		if json.Unmarshal(el, &s) != nil {
			var obj struct {
				URL string `json:"url"`
			}
			if json.Unmarshal(el, &obj) != nil {
				continue
			}
			s = obj.URL
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FlexInt decodes a JSON number or numeric string ("1,234" included) into a
// non-negative integer. Valid is false for anything else.
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.NewReplacer(",", "", "_", "", " ", "").Replace(s)
	}
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.set(n)
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		f.set(int64(x))
	}
	return nil
}

func (f *FlexInt) set(n int64) {
	if n < 0 {
		return
	}
	f.Value, f.Valid = n, true
}

// AbsURL resolves protocol-relative and root-relative references against
// base. Absolute URLs are returned unchanged, unparseable ones dropped.
func AbsURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// URLParam returns query parameter name of a possibly relative URL.
func URLParam(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}

// PathAfter returns the path segment following prefix, e.g.
// PathAfter("/channel/UC1?x", "/channel/") == "UC1".
func PathAfter(rawURL, prefix string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, prefix)
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "/")
	return rest
}
