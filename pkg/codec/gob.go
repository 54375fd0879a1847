package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// Gob is the binary format. Streams are stored as raw bytes and timestamps
// as Unix microseconds.
type Gob struct{}

func (Gob) Name() string      { return FormatGob }
func (Gob) Extension() string { return "gob" }

// gobNode is the wire form of a Value.
type gobNode struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Micros int64
	Bytes  []byte
	Keys   []string
	Items  []gobNode
}

func (Gob) Marshal(v Value) ([]byte, error) {
	node, err := toGobNode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(node); err != nil {
		return nil, fmt.Errorf("encode gob: %w", err)
	}
	return buf.Bytes(), nil
}

func (Gob) Unmarshal(data []byte) (Value, error) {
	var node gobNode
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromGobNode(node)
}

func toGobNode(v Value) (gobNode, error) {
	switch x := v.(type) {
	case nil, Null:
		return gobNode{Kind: KindNull}, nil
	case Bool:
		return gobNode{Kind: KindBool, Bool: bool(x)}, nil
	case Int:
		return gobNode{Kind: KindInt, Int: int64(x)}, nil
	case Float:
		return gobNode{Kind: KindFloat, Float: float64(x)}, nil
	case String:
		return gobNode{Kind: KindString, Str: string(x)}, nil
	case Timestamp:
		return gobNode{Kind: KindTimestamp, Micros: x.Time().UnixMicro()}, nil
	case BinaryStream:
		return gobNode{Kind: KindBinaryStream, Bytes: x}, nil
	case Mapping:
		n := gobNode{Kind: KindMapping}
		for _, k := range sortedKeys(x) {
			c, err := toGobNode(x[k])
			if err != nil {
				return gobNode{}, fmt.Errorf("%s: %w", k, err)
			}
			n.Keys = append(n.Keys, k)
			n.Items = append(n.Items, c)
		}
		return n, nil
	case Sequence:
		n := gobNode{Kind: KindSequence}
		for i, item := range x {
			c, err := toGobNode(item)
			if err != nil {
				return gobNode{}, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Items = append(n.Items, c)
		}
		return n, nil
	}
	return gobNode{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func fromGobNode(n gobNode) (Value, error) {
	switch n.Kind {
	case KindNull:
		return Null{}, nil
	case KindBool:
		return Bool(n.Bool), nil
	case KindInt:
		return Int(n.Int), nil
	case KindFloat:
		return Float(n.Float), nil
	case KindString:
		return String(n.Str), nil
	case KindTimestamp:
		return NewTimestamp(time.UnixMicro(n.Micros)), nil
	case KindBinaryStream:
		if n.Bytes == nil {
			return BinaryStream{}, nil
		}
		return BinaryStream(n.Bytes), nil
	case KindMapping:
		if len(n.Keys) != len(n.Items) {
			return nil, fmt.Errorf("%w: mapping has %d keys and %d values", ErrMalformed, len(n.Keys), len(n.Items))
		}
		out := make(Mapping, len(n.Keys))
		for i, k := range n.Keys {
			v, err := fromGobNode(n.Items[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	case KindSequence:
		out := make(Sequence, len(n.Items))
		for i, item := range n.Items {
			v, err := fromGobNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, n.Kind)
}
