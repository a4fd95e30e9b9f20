package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// MaxComponentDepth bounds how deeply nested extra arrays may be.
const MaxComponentDepth = 32

// ErrTooDeep is returned when a component nests deeper than MaxComponentDepth.
var ErrTooDeep = errors.New("chat component nested too deeply")

// ComponentKind tags the shape of a Component.
type ComponentKind uint8

const (
	// KindText is a bare JSON string.
	KindText ComponentKind = iota
	// KindObject is an object with text, extra and any other keys.
	KindObject
	// KindList is a top-level array of components.
	KindList
	// KindOther is any other JSON value, kept verbatim.
	KindOther
)

// Component is a parsed chat component. Keys other than text and extra are
// kept as raw JSON so a rewritten component re-encodes without loss.
type Component struct {
	Kind  ComponentKind
	Text  string
	Extra []Component

	hasText bool
	rest    map[string]json.RawMessage
	keys    []string
	raw     json.RawMessage
}

// ErrMalformed is returned for input that is not a single JSON value.
var ErrMalformed = errors.New("malformed chat component JSON")

// ParseComponent parses a chat component JSON document. Truncated input and
// trailing bytes after the value are rejected.
func ParseComponent(s string) (Component, error) {
	if !json.Valid([]byte(s)) {
		return Component{}, ErrMalformed
	}
	return decodeComponent(json.RawMessage(s), 0)
}

func decodeComponent(data json.RawMessage, depth int) (Component, error) {
	if depth > MaxComponentDepth {
		return Component{}, ErrTooDeep
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Component{}, fmt.Errorf("empty chat component")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Component{}, fmt.Errorf("decode text component: %w", err)
		}
		return Component{Kind: KindText, Text: s}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return Component{}, fmt.Errorf("decode component list: %w", err)
		}
		c := Component{Kind: KindList}
		for _, item := range items {
			child, err := decodeComponent(item, depth+1)
			if err != nil {
				return Component{}, err
			}
			c.Extra = append(c.Extra, child)
		}
		return c, nil

	case '{':
		return decodeObject(data, depth)

	default:
		if !json.Valid(data) {
			return Component{}, fmt.Errorf("invalid chat component JSON")
		}
		return Component{Kind: KindOther, raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeObject(data json.RawMessage, depth int) (Component, error) {
	c := Component{Kind: KindObject, rest: map[string]json.RawMessage{}}

	// Walk tokens to keep the original key order for re-encoding.
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return Component{}, fmt.Errorf("decode component object: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Component{}, fmt.Errorf("decode component key: %w", err)
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Component{}, fmt.Errorf("decode component %q: %w", key, err)
		}
		switch key {
		case "text":
			var s string
			if json.Unmarshal(value, &s) == nil {
				c.Text, c.hasText = s, true
				continue
			}
		case "extra":
			var items []json.RawMessage
			if json.Unmarshal(value, &items) == nil {
				for _, item := range items {
					child, err := decodeComponent(item, depth+1)
					if err != nil {
						return Component{}, err
					}
					c.Extra = append(c.Extra, child)
				}
				continue
			}
		}

		// Anything else, including a malformed text or extra, is kept raw.
		if _, dup := c.rest[key]; !dup {
			c.keys = append(c.keys, key)
		}
		c.rest[key] = value
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return Component{}, fmt.Errorf("decode component object: %w", ErrMalformed)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Component{}, fmt.Errorf("decode component object: trailing data: %w", ErrMalformed)
	}
	return c, nil
}

// MarshalJSON encodes the component back to its JSON shape.
func (c Component) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindText:
		return json.Marshal(c.Text)
	case KindList:
		if c.Extra == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Extra)
	case KindOther:
		return c.raw, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	field := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	if c.hasText || len(c.Extra) == 0 && len(c.rest) == 0 {
		t, err := json.Marshal(c.Text)
		if err != nil {
			return nil, err
		}
		field("text", t)
	}
	for _, k := range c.keys {
		if v, ok := c.rest[k]; ok {
			field(k, v)
		}
	}
	if len(c.Extra) > 0 {
		e, err := json.Marshal(c.Extra)
		if err != nil {
			return nil, err
		}
		field("extra", e)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String encodes the component, returning "" on failure.
func (c Component) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// Walk calls fn on every node, parents before children. Returning false
// skips the node's children.
func (c *Component) Walk(fn func(*Component) bool) {
	if !fn(c) {
		return
	}
	for i := range c.Extra {
		c.Extra[i].Walk(fn)
	}
}

// PlainText concatenates the text of every node, keeping legacy § codes.
func (c Component) PlainText() string {
	var sb strings.Builder
	c.Walk(func(n *Component) bool {
		if n.Kind == KindText || n.Kind == KindObject {
			sb.WriteString(n.Text)
		}
		return true
	})
	return sb.String()
}

var legacyCode = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)

// StripCodes removes legacy § formatting codes.
func StripCodes(s string) string {
	return legacyCode.ReplaceAllString(s, "")
}

// CleanText parses a chat JSON payload and returns its uncoloured text.
// Unparseable payloads fall back to the raw string with codes stripped.
func CleanText(raw string) string {
	c, err := ParseComponent(raw)
	if err != nil {
		return StripCodes(raw)
	}
	return StripCodes(c.PlainText())
}

// TextComponent wraps a legacy-formatted string as a JSON chat component.
func TextComponent(s string) string {
	b, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{s})
	return string(b)
}
