// Package document provides an untyped, order-preserving representation of a
// decoded JSON or YAML document. Mappings keep their key order from the source
// text so that downstream consumers iterating a document produce stable output.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed mapping that preserves insertion order. Values are
// *Map, []any, or scalars (string, int, float64, bool, nil).
//
// All read accessors tolerate a nil receiver and absent keys by returning zero
// values, which keeps traversal of sparse documents free of nil checks.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set stores value under key, appending the key on first insertion.
func (m *Map) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the raw value and whether the key is present.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Value returns the raw value under key, or nil.
func (m *Map) Value(key string) any {
	v, _ := m.Get(key)
	return v
}

// Map returns the nested Map under key, or nil when absent or not a mapping.
func (m *Map) Map(key string) *Map {
	v, _ := m.Get(key)
	nested, _ := v.(*Map)
	return nested
}

// Slice returns the sequence under key, or nil when absent or not a sequence.
func (m *Map) Slice(key string) []any {
	v, _ := m.Get(key)
	s, _ := v.([]any)
	return s
}

// String returns the string under key, or "" when absent or not a string.
func (m *Map) String(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// StringOr returns the string under key, or def when absent or not a string.
func (m *Map) StringOr(key, def string) string {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Bool returns the bool under key, or false when absent or not a bool.
func (m *Map) Bool(key string) bool {
	v, _ := m.Get(key)
	b, _ := v.(bool)
	return b
}

// DecodeJSON decodes JSON bytes into a document tree. Object key order is
// preserved and integral numbers decode as int so that a document decoded from
// JSON compares equal to the same document decoded from YAML.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	// Reject trailing content so concatenated or truncated documents fail.
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after document")
		}
		return nil, fmt.Errorf("document: %w", err)
	}
	return value, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("document: empty input")
		}
		return nil, fmt.Errorf("document: %w", err)
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("document: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("document: non-string object key %v", keyTok)
				}
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, value)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, fmt.Errorf("document: %w", err)
			}
			return m, nil
		case '[':
			var s []any
			for dec.More() {
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				s = append(s, value)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, fmt.Errorf("document: %w", err)
			}
			return s, nil
		default:
			return nil, fmt.Errorf("document: unexpected delimiter %v", t)
		}
	case json.Number:
		return normalizeNumber(t)
	default:
		// string, bool, or nil
		return t, nil
	}
}

func normalizeNumber(n json.Number) (any, error) {
	raw := n.String()
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("document: invalid number %q: %w", raw, err)
	}
	return f, nil
}

// DecodeYAML decodes YAML bytes into a document tree with mapping key order
// preserved. An empty input decodes to nil.
func DecodeYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	if root.Kind == 0 {
		return nil, nil
	}
	return decodeYAMLNode(&root)
}

func decodeYAMLNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeYAMLNode(node.Content[0])
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			value, err := decodeYAMLNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(key, value)
		}
		return m, nil
	case yaml.SequenceNode:
		var s []any
		for _, item := range node.Content {
			value, err := decodeYAMLNode(item)
			if err != nil {
				return nil, err
			}
			s = append(s, value)
		}
		return s, nil
	case yaml.AliasNode:
		return decodeYAMLNode(node.Alias)
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("document: %w", err)
		}
		if i, ok := v.(int64); ok {
			return int(i), nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("document: unsupported node kind %v", node.Kind)
	}
}
