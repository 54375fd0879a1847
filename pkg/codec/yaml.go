package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// YAML stores fixtures as YAML documents with the same tagged layout as
// JSON. Nodes are built explicitly so ints and floats keep their kind.
type YAML struct{}

func (YAML) Name() string      { return FormatYAML }
func (YAML) Extension() string { return "yaml" }

func (YAML) Marshal(v Value) ([]byte, error) {
	node, err := toYAMLNode(v)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func (YAML) Unmarshal(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromYAMLNode(&doc)
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func mappingNode(keys []string, values map[string]*yaml.Node) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		n.Content = append(n.Content, scalarNode("!!str", k), values[k])
	}
	return n
}

func toYAMLNode(v Value) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil, Null:
		return scalarNode("!!null", "null"), nil
	case Bool:
		return scalarNode("!!bool", strconv.FormatBool(bool(x))), nil
	case Int:
		return scalarNode("!!int", strconv.FormatInt(int64(x), 10)), nil
	case Float:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			return scalarNode("!!float", ".nan"), nil
		case math.IsInf(f, 1):
			return scalarNode("!!float", ".inf"), nil
		case math.IsInf(f, -1):
			return scalarNode("!!float", "-.inf"), nil
		}
		return scalarNode("!!float", formatFloat(f)), nil
	case String:
		if !utf8.ValidString(string(x)) {
			return nil, fmt.Errorf("%w: string is not valid UTF-8", ErrUnsupportedType)
		}
		return scalarNode("!!str", string(x)), nil
	case Timestamp, BinaryStream:
		tree, err := Tagged(x)
		if err != nil {
			return nil, err
		}
		fields := tree.(map[string]any)
		values := make(map[string]*yaml.Node, len(fields))
		for k, fv := range fields {
			if k == ClassKey || k == PayloadKey {
				values[k] = scalarNode("!!str", fmt.Sprint(fv))
			} else {
				values[k] = scalarNode("!!int", fmt.Sprint(fv))
			}
		}
		return mappingNode(sortedKeys(fields), values), nil
	case Mapping:
		if err := checkMapping(x); err != nil {
			return nil, err
		}
		values := make(map[string]*yaml.Node, len(x))
		for k, item := range x {
			n, err := toYAMLNode(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			values[k] = n
		}
		return mappingNode(sortedKeys(x), values), nil
	case Sequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range x {
			c, err := toYAMLNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func fromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null{}, nil
		}
		return fromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	case yaml.MappingNode:
		out := make(Mapping, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: non-scalar mapping key at line %d", ErrMalformed, key.Line)
			}
			v, err := fromYAMLNode(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key.Value, err)
			}
			out[key.Value] = v
		}
		return untag(out)
	case yaml.SequenceNode:
		out := make(Sequence, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAMLNode(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: yaml node kind %d", ErrMalformed, n.Kind)
}

func fromYAMLScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Float(f), nil
	case "!!binary":
		data, err := base64.StdEncoding.DecodeString(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return BinaryStream(data), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return NewTimestamp(t), nil
	}
	return String(n.Value), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
