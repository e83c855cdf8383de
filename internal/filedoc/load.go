package filedoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a loaded YAML or JSON file.
type Document struct {
	path string
	root *yaml.Node
}

// ParseError reports a file that could be read but not parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads and parses the file at path. Files ending in ".json" are read
// as JSON, everything else as YAML. An empty file yields an empty mapping.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return ParseDocument(path, data)
}

// ParseDocument parses data as if it had been read from path.
func ParseDocument(path string, data []byte) (*Document, error) {
	root, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &Document{path: path, root: root}, nil
}

// Parse builds a document tree from raw bytes.
func Parse(data []byte, isJSON bool) (*yaml.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	if isJSON {
		return parseJSON(data)
	}
	return parseYAML(data)
}

// Path returns the file the document was loaded from.
func (d *Document) Path() string {
	return d.path
}

// Root returns the top-level value.
func (d *Document) Root() *Value {
	return newValue(d.root)
}

// Shape reports the kind of the top-level value.
func (d *Document) Shape() Kind {
	return d.Root().Kind()
}

func parseYAML(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	flatten(root, map[*yaml.Node]bool{})
	return root, nil
}

// flatten rewrites every mapping below node so that each key appears once.
// A repeated key keeps its first position and takes the last value, as in
// the JSON loader. Merge keys ("<<") are expanded in place; merged entries
// never override keys written in the mapping itself, and earlier merge
// sources win over later ones.
func flatten(node *yaml.Node, seen map[*yaml.Node]bool) {
	if node == nil || seen[node] {
		return
	}
	seen[node] = true

	switch node.Kind {
	case yaml.AliasNode:
		flatten(node.Alias, seen)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			flatten(item, seen)
		}
	case yaml.MappingNode:
		flattenMapping(node, seen)
	}
}

func flattenMapping(node *yaml.Node, seen map[*yaml.Node]bool) {
	explicit := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if !isMergeKey(node.Content[i]) {
			explicit[node.Content[i].Value] = true
		}
	}

	out := make([]*yaml.Node, 0, len(node.Content))
	set := func(key, value *yaml.Node, override bool) {
		for i := 0; i+1 < len(out); i += 2 {
			if out[i].Value == key.Value {
				if override {
					out[i+1] = value
				}
				return
			}
		}
		out = append(out, key, value)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !isMergeKey(key) {
			flatten(value, seen)
			set(key, value, true)
			continue
		}
		for _, src := range mergeSources(value) {
			flatten(src, seen)
			for j := 0; j+1 < len(src.Content); j += 2 {
				if !explicit[src.Content[j].Value] {
					set(src.Content[j], src.Content[j+1], false)
				}
			}
		}
	}

	node.Content = out
}

func isMergeKey(key *yaml.Node) bool {
	return key.Kind == yaml.ScalarNode && key.ShortTag() == "!!merge"
}

// mergeSources returns the mappings a merge key refers to: one mapping or a
// sequence of them, possibly through aliases.
func mergeSources(value *yaml.Node) []*yaml.Node {
	value = resolve(value)
	if value == nil {
		return nil
	}
	if value.Kind == yaml.MappingNode {
		return []*yaml.Node{value}
	}
	var sources []*yaml.Node
	if value.Kind == yaml.SequenceNode {
		for _, item := range value.Content {
			if m := resolve(item); m != nil && m.Kind == yaml.MappingNode {
				sources = append(sources, m)
			}
		}
	}
	return sources
}

// parseJSON walks the JSON token stream so object keys keep their order.
func parseJSON(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return node, nil
}

func decodeJSONValue(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				setJSONKey(node, key, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		case '[':
			node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return stringNode(t), nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(t.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case bool:
		value := "false"
		if t {
			value = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: value}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// setJSONKey stores value under key. A repeated key keeps its first
// position and takes the last value.
func setJSONKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, stringNode(key), value)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
