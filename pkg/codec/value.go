package codec

import (
	"bytes"
	"errors"
	"time"
)

// Errors returned by the codec.
var (
	ErrUnsupportedType = errors.New("unsupported payload type")
	ErrUnknownFormat   = errors.New("unknown serialization format")
	ErrTypeMismatch    = errors.New("value does not fit target type")
	ErrMalformed       = errors.New("malformed encoded value")
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTimestamp
	KindBinaryStream
	KindMapping
	KindSequence
)

var kindNames = [...]string{
	KindNull:         "null",
	KindBool:         "bool",
	KindInt:          "int",
	KindFloat:        "float",
	KindString:       "string",
	KindTimestamp:    "timestamp",
	KindBinaryStream: "stream",
	KindMapping:      "mapping",
	KindSequence:     "sequence",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a storable payload. The set of implementations is closed.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the absent value.
	Null struct{}
	// Bool is a boolean scalar.
	Bool bool
	// Int is an integer scalar.
	Int int64
	// Float is a floating point scalar.
	Float float64
	// String is a text scalar.
	String string
	// BinaryStream holds the bytes of a drained stream or byte slice.
	BinaryStream []byte
	// Mapping is a string-keyed collection.
	Mapping map[string]Value
	// Sequence is an ordered collection.
	Sequence []Value
)

// Timestamp is an instant normalized to UTC and truncated to microseconds.
// Use NewTimestamp to build one.
type Timestamp struct {
	t time.Time
}

// NewTimestamp normalizes t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Microsecond)}
}

// Time returns the instant in UTC.
func (ts Timestamp) Time() time.Time { return ts.t }

func (Null) Kind() Kind         { return KindNull }
func (Bool) Kind() Kind         { return KindBool }
func (Int) Kind() Kind          { return KindInt }
func (Float) Kind() Kind        { return KindFloat }
func (String) Kind() Kind       { return KindString }
func (Timestamp) Kind() Kind    { return KindTimestamp }
func (BinaryStream) Kind() Kind { return KindBinaryStream }
func (Mapping) Kind() Kind      { return KindMapping }
func (Sequence) Kind() Kind     { return KindSequence }

func (Null) sealed()         {}
func (Bool) sealed()         {}
func (Int) sealed()          {}
func (Float) sealed()        {}
func (String) sealed()       {}
func (Timestamp) sealed()    {}
func (BinaryStream) sealed() {}
func (Mapping) sealed()      {}
func (Sequence) sealed()     {}

// Equal reports whether a and b hold the same data.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null:
		return true
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case Float:
		return x == b.(Float)
	case String:
		return x == b.(String)
	case Timestamp:
		return x.t.Equal(b.(Timestamp).t)
	case BinaryStream:
		return bytes.Equal(x, b.(BinaryStream))
	case Mapping:
		y := b.(Mapping)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Sequence:
		y := b.(Sequence)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Walk calls fn for v and every nested value, depth first. Returning a
// non-nil Value from fn replaces the visited value.
func Walk(v Value, fn func(Value) Value) Value {
	switch x := v.(type) {
	case Mapping:
		out := make(Mapping, len(x))
		for k, item := range x {
			out[k] = Walk(item, fn)
		}
		v = out
	case Sequence:
		out := make(Sequence, len(x))
		for i, item := range x {
			out[i] = Walk(item, fn)
		}
		v = out
	}
	if r := fn(v); r != nil {
		return r
	}
	return v
}
