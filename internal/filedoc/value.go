package filedoc

import (
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind is the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a node of a loaded document. Mutations through Remove are
// visible to every Value sharing the same document.
type Value struct {
	node *yaml.Node
}

// Entry is a key and its value, as returned by Entries.
type Entry struct {
	Key   string
	Value *Value
}

func newValue(node *yaml.Node) *Value {
	return &Value{node: resolve(node)}
}

// resolve follows aliases to the anchored node.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// Kind reports the shape of the value.
func (v *Value) Kind() Kind {
	if v == nil || v.node == nil {
		return KindNull
	}
	switch v.node.Kind {
	case yaml.MappingNode:
		return KindMapping
	case yaml.SequenceNode:
		return KindSequence
	case yaml.ScalarNode:
		if v.node.Tag == "!!null" {
			return KindNull
		}
		return KindScalar
	default:
		return KindNull
	}
}

// Len returns the number of entries of a mapping or sequence, 0 otherwise.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindMapping:
		return len(v.node.Content) / 2
	case KindSequence:
		return len(v.node.Content)
	default:
		return 0
	}
}

// Has reports whether key is present.
func (v *Value) Has(key string) bool {
	return v.index(key) >= 0
}

// Get returns the value stored under key, or nil if absent.
func (v *Value) Get(key string) *Value {
	i := v.index(key)
	if i < 0 {
		return nil
	}
	if v.Kind() == KindMapping {
		return newValue(v.node.Content[i+1])
	}
	return newValue(v.node.Content[i])
}

// Remove deletes key and reports whether it was present.
func (v *Value) Remove(key string) bool {
	i := v.index(key)
	if i < 0 {
		return false
	}
	width := 1
	if v.Kind() == KindMapping {
		width = 2
	}
	v.node.Content = append(v.node.Content[:i], v.node.Content[i+width:]...)
	return true
}

// Take removes the listed keys from a mapping and returns them as a new
// mapping, in document order. Keys that are absent are skipped. On any other
// kind Take returns an empty mapping and leaves v untouched.
func (v *Value) Take(keys ...string) *Value {
	taken := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if v.Kind() != KindMapping {
		return newValue(taken)
	}

	kept := make([]*yaml.Node, 0, len(v.node.Content))
	for i := 0; i+1 < len(v.node.Content); i += 2 {
		key, val := v.node.Content[i], v.node.Content[i+1]
		if slices.Contains(keys, key.Value) {
			taken.Content = append(taken.Content, key, val)
			continue
		}
		kept = append(kept, key, val)
	}
	v.node.Content = kept

	return newValue(taken)
}

// Keys returns mapping keys in document order, or sequence indexes.
func (v *Value) Keys() []string {
	entries := v.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns the ordered entries of a mapping or sequence.
func (v *Value) Entries() []Entry {
	switch v.Kind() {
	case KindMapping:
		entries := make([]Entry, 0, v.Len())
		for i := 0; i+1 < len(v.node.Content); i += 2 {
			entries = append(entries, Entry{
				Key:   v.node.Content[i].Value,
				Value: newValue(v.node.Content[i+1]),
			})
		}
		return entries
	case KindSequence:
		entries := make([]Entry, 0, v.Len())
		for i, item := range v.node.Content {
			entries = append(entries, Entry{Key: strconv.Itoa(i), Value: newValue(item)})
		}
		return entries
	default:
		return nil
	}
}

// String returns the text of a scalar. ok is false for null, mappings and
// sequences.
func (v *Value) String() (s string, ok bool) {
	if v.Kind() != KindScalar {
		return "", false
	}
	return v.node.Value, true
}

// IsString reports whether the value is a string scalar.
func (v *Value) IsString() bool {
	return v.Kind() == KindScalar && v.node.ShortTag() == "!!str"
}

// Interface decodes the value into plain Go types (map[string]any, []any,
// string, int, float64, bool, nil). Mapping order is not preserved.
func (v *Value) Interface() (any, error) {
	if v == nil || v.node == nil {
		return nil, nil
	}
	var out any
	if err := v.node.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// index returns the position of key in the node content, or -1.
func (v *Value) index(key string) int {
	switch v.Kind() {
	case KindMapping:
		for i := 0; i+1 < len(v.node.Content); i += 2 {
			if v.node.Content[i].Value == key {
				return i
			}
		}
	case KindSequence:
		n, err := strconv.Atoi(key)
		if err == nil && n >= 0 && n < len(v.node.Content) && strconv.Itoa(n) == key {
			return n
		}
	}
	return -1
}
