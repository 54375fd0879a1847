// Package fingerprint derives stable identifiers for intercepted calls.
//
// A fingerprint is the hex SHA-256 of the canonical JSON form of
//
//	{"service": ..., "operation": ..., "params": {<path>: <value>, ...}}
//
// where only the parameters selected by an allow-list of JSONPath
// expressions take part. Paths that select nothing are left out, paths
// that select several values contribute them as a list in document order,
// with mapping entries visited in sorted key order.
//
// The default allow-list includes $.context.client_region, so the same
// call made against two regions yields two fingerprints.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/pillbox/pkg/codec"
)

// ID is a hex encoded SHA-256 digest.
type ID string

func (id ID) String() string { return string(id) }

// Short returns the first 12 hex digits, for logs.
func (id ID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// DefaultFields is the allow-list used when none is given.
var DefaultFields = []string{
	"$.method",
	"$.url_path",
	"$.query_string",
	"$.body",
	"$.context.client_region",
}

type field struct {
	path string
	expr jp.Expr
}

// Matcher computes fingerprints over an allow-list of parameter paths.
type Matcher struct {
	fields []field
}

// New compiles the given JSONPath expressions. With no paths it uses
// DefaultFields.
func New(paths ...string) (*Matcher, error) {
	if len(paths) == 0 {
		paths = DefaultFields
	}
	m := &Matcher{fields: make([]field, 0, len(paths))}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		expr, err := jp.ParseString(p)
		if err != nil {
			return nil, fmt.Errorf("parse field %q: %w", p, err)
		}
		m.fields = append(m.fields, field{path: p, expr: expr})
	}
	return m, nil
}

// MustNew is New for allow-lists known at compile time.
func MustNew(paths ...string) *Matcher {
	m, err := New(paths...)
	if err != nil {
		panic(err)
	}
	return m
}

// Fields returns the allow-list.
func (m *Matcher) Fields() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.path
	}
	return out
}

// Select returns the allow-listed parameters, keyed by path.
func (m *Matcher) Select(params codec.Value) codec.Mapping {
	doc := toTree(params)
	selected := make(codec.Mapping, len(m.fields))
	for _, f := range m.fields {
		results := f.expr.Get(doc)
		switch len(results) {
		case 0:
		case 1:
			selected[f.path] = fromTree(results[0])
		default:
			seq := make(codec.Sequence, len(results))
			for i, r := range results {
				seq[i] = fromTree(r)
			}
			selected[f.path] = seq
		}
	}
	return selected
}

// Fingerprint returns the ID of a call. It is a pure function of its
// arguments: map ordering and parameters outside the allow-list never
// change the result.
func (m *Matcher) Fingerprint(service, operation string, params codec.Value) (ID, error) {
	canonical, err := codec.Canonical(codec.Mapping{
		"service":   codec.String(service),
		"operation": codec.String(operation),
		"params":    m.Select(params),
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize %s.%s params: %w", service, operation, err)
	}
	sum := sha256.Sum256(canonical)
	return ID(hex.EncodeToString(sum[:])), nil
}

// toTree exposes mappings to jp as keyedMappings and sequences as plain
// slices. Other variants stay as leaves.
func toTree(v codec.Value) any {
	switch x := v.(type) {
	case codec.Mapping:
		km := &keyedMapping{keys: make([]string, 0, len(x)), values: make(map[string]any, len(x))}
		for k, item := range x {
			km.keys = append(km.keys, k)
			km.values[k] = toTree(item)
		}
		slices.Sort(km.keys)
		return km
	case codec.Sequence:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toTree(item)
		}
		return out
	case nil:
		return codec.Null{}
	}
	return v
}

func fromTree(t any) codec.Value {
	switch x := t.(type) {
	case *keyedMapping:
		out := make(codec.Mapping, len(x.values))
		for k, item := range x.values {
			out[k] = fromTree(item)
		}
		return out
	case []any:
		out := make(codec.Sequence, len(x))
		for i, item := range x {
			out[i] = fromTree(item)
		}
		return out
	case codec.Value:
		return x
	}
	return codec.Null{}
}

// keyedMapping is a jp.Keyed whose keys are sorted. jp ranges over plain
// maps in random order; over a Keyed it follows Keys.
type keyedMapping struct {
	keys   []string
	values map[string]any
}

func (m *keyedMapping) ValueForKey(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *keyedMapping) SetValueForKey(key string, value any) {
	if _, ok := m.values[key]; !ok {
		i, _ := slices.BinarySearch(m.keys, key)
		m.keys = slices.Insert(m.keys, i, key)
	}
	m.values[key] = value
}

func (m *keyedMapping) RemoveValueForKey(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	if i, found := slices.BinarySearch(m.keys, key); found {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

func (m *keyedMapping) Keys() []string { return m.keys }

var _ jp.Keyed = (*keyedMapping)(nil)
