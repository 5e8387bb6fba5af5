package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Node is a value found under one of the requested keys.
type Node struct {
	Key string
	Raw json.RawMessage
}

// walkFrame is one open container on the walk stack. key reports whether
// the next token inside an object is a member name.
type walkFrame struct {
	obj bool
	key bool
}

// CollectByKey streams data once and returns, in document order, every value
// stored under one of keys at any depth. Matched values are not descended
// into. Nesting is tracked on an explicit stack, so depth is bounded only by
// memory.
func CollectByKey(data []byte, keys ...string) ([]Node, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var (
		stack []walkFrame
		out   []Node
	)
	// valueDone marks the member value of the enclosing object as consumed.
	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].obj {
			stack[n-1].key = true
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}

		if n := len(stack); n > 0 && stack[n-1].obj && stack[n-1].key {
			if d, ok := tok.(json.Delim); ok && d == '}' {
				stack = stack[:n-1]
				valueDone()
				continue
			}
			name, _ := tok.(string)
			stack[n-1].key = false
			if want[name] {
				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					return out, err
				}
				out = append(out, Node{Key: name, Raw: raw})
				stack[n-1].key = true
			}
			continue
		}

		switch tok {
		case json.Delim('{'):
			stack = append(stack, walkFrame{obj: true, key: true})
		case json.Delim('['):
			stack = append(stack, walkFrame{})
		case json.Delim(']'), json.Delim('}'):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			valueDone()
		default:
			valueDone()
		}
	}
}
