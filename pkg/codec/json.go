package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSON is the default text format: four-space indented, keys sorted.
type JSON struct{}

func (JSON) Name() string      { return FormatJSON }
func (JSON) Extension() string { return "json" }

func (JSON) Marshal(v Value) ([]byte, error) {
	tree, err := Tagged(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

func (JSON) Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformed)
	}
	return FromTagged(tree)
}

// Canonical returns the compact JSON form of v with sorted keys. Equal
// values always produce identical bytes.
func Canonical(v Value) ([]byte, error) {
	tree, err := Tagged(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
